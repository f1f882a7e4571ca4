// Package main provides the dolphin-mcp-cli command.
package main

import "github.com/dotcommander/dolphin/internal/cmd"

// Build vars.
var (
	//nolint: gochecknoglobals
	Version = ""
	//nolint: gochecknoglobals
	CommitSHA = ""
)

func main() {
	cmd.Execute(cmd.BuildInfo{Version: Version, CommitSHA: CommitSHA})
}
