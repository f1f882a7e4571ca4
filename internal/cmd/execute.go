package cmd

import (
	"context"
	"errors"
	"os"
	"slices"

	"github.com/dotcommander/dolphin/internal/errs"
)

// Execute runs the command line and exits the process with its status.
func Execute(build BuildInfo) {
	rt := &runtime{
		build:  normalizeBuildInfo(build),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	os.Exit(rt.execute(context.Background(), os.Args[1:]))
}

// execute returns the process exit status for args.
func (rt *runtime) execute(ctx context.Context, args []string) int {
	root := newRootCmd(rt)

	// Help wins over everything else, including malformed flags.
	if helpRequested(args) {
		if err := root.Usage(); err != nil {
			rt.handleError(err)
			return 1
		}
		return 0
	}

	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errs.ErrUsage) {
			rt.handleError(err)
		}
		return 1
	}
	return 0
}

func helpRequested(args []string) bool {
	return slices.Contains(args, "--help") || slices.Contains(args, "-h")
}
