package cmd

import (
	"fmt"
	goruntime "runtime"
	"runtime/debug"
)

// shaShort is the length of an abbreviated commit SHA.
const shaShort = 7

// BuildInfo is injected by the build pipeline.
type BuildInfo struct {
	Version   string
	CommitSHA string
}

// versionTemplate returns the Cobra version template string including
// commit SHA, Go version, and OS/arch.
func versionTemplate(b BuildInfo) string {
	v := "{{.Name}} {{.Version}}"
	if len(b.CommitSHA) >= shaShort {
		v += " (" + b.CommitSHA[:shaShort] + ")"
	}
	v += fmt.Sprintf(" %s %s/%s\n", goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
	return v
}

func normalizeBuildInfo(b BuildInfo) BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		if b.Version == "" {
			b.Version = "unknown"
		}
		return b
	}

	if b.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}

	var vcsRev, vcsModified string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			vcsRev = s.Value
		case "vcs.modified":
			vcsModified = s.Value
		}
	}

	if b.CommitSHA == "" {
		b.CommitSHA = vcsRev
	}

	if b.Version == "" {
		b.Version = "dev"
		if len(vcsRev) >= shaShort {
			b.Version += "-" + vcsRev[:shaShort]
		}
		if vcsModified == "true" {
			b.Version += "-dirty"
		}
	}

	return b
}
