package cmd

import (
	"context"

	"github.com/dotcommander/dolphin/internal/config"
	"github.com/dotcommander/dolphin/internal/errs"
	"github.com/dotcommander/dolphin/internal/sse"
)

// answer streams the model's answer to stdout, one frame per fragment.
func (rt *runtime) answer(ctx context.Context, cfg *config.Config, query string) error {
	run := rt.newService(cfg).Run(ctx, query)
	defer func() { _ = run.Close() }()

	emitter := sse.NewEmitter(rt.stdout)
	for fragment := range run.Fragments() {
		if err := emitter.Emit(fragment); err != nil {
			return errs.Error{Err: err, Reason: "Could not write to standard output."}
		}
	}
	return run.Err()
}
