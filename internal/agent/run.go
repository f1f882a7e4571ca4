package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dotcommander/dolphin/internal/errs"
	"github.com/dotcommander/dolphin/internal/storage"
	"github.com/dotcommander/dolphin/internal/stream"
)

// State is the lifecycle state of a Run.
type State int32

// Run states.
const (
	StateIdle State = iota
	StateStreaming
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Run is one query in flight. Fragments are delivered on Fragments in the
// order the engine produced them; the channel is closed when the run ends.
type Run struct {
	fragments chan string
	done      chan struct{}
	cancel    context.CancelFunc
	state     atomic.Int32
	err       error
	closeOnce sync.Once
}

// Fragments returns the answer fragments. The channel is unbuffered, so the
// engine only advances as fast as the consumer reads.
func (r *Run) Fragments() <-chan string {
	return r.fragments
}

// State returns the current state.
func (r *Run) State() State {
	return State(r.state.Load())
}

// Err waits for the run to end and returns the error that ended it.
func (r *Run) Err() error {
	<-r.done
	return r.err
}

// Close stops the run if it is still going and waits until every resource it
// acquired has been released.
func (r *Run) Close() error {
	r.closeOnce.Do(r.cancel)
	<-r.done
	if errors.Is(r.err, context.Canceled) {
		return nil
	}
	return r.err
}

func (r *Run) send(ctx context.Context, fragment string) error {
	select {
	case r.fragments <- fragment:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Run) finish(err error) {
	r.err = err
	if err != nil {
		r.state.Store(int32(StateFailed))
	} else {
		r.state.Store(int32(StateDone))
	}
	close(r.done)
	close(r.fragments)
}

// Run answers query. The provider servers are started, the model is streamed
// with their tools available, and every connection is closed again before the
// fragments channel is closed.
func (s *Service) Run(ctx context.Context, query string) *Run {
	ctx, cancel := context.WithCancel(ctx)
	r := &Run{
		fragments: make(chan string),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	if strings.TrimSpace(query) == "" {
		cancel()
		r.finish(fmt.Errorf("%w: empty query", errs.ErrUsage))
		return r
	}

	r.state.Store(int32(StateStreaming))
	go func() {
		defer cancel()
		r.finish(s.run(ctx, r, query))
	}()
	return r
}

func (s *Service) run(ctx context.Context, r *Run, query string) error {
	mod, err := ResolveModel(s.cfg.Models, s.cfg.Model)
	if err != nil {
		return err
	}
	providerCfg, err := prepareProviderConfig(ctx, mod)
	if err != nil {
		return err
	}
	if err := ApplyProxyConfig(s.cfg.HTTPProxy, &providerCfg); err != nil {
		return err
	}
	request, err := s.request(ctx, mod, query)
	if err != nil {
		return err
	}
	client, err := s.clientFactory(providerCfg)
	if err != nil {
		return err
	}

	msgLog, err := storage.OpenMessageLog(s.cfg.LogMessagesPath, mod.Name)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not open the message log."}
	}
	defer func() { _ = msgLog.Close() }()

	pool, err := s.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.Close(); err != nil {
			s.reporter.Warn(err.Error())
		}
	}()

	tools, err := pool.Tools(ctx)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not list the provider tools."}
	}
	if len(tools) > 0 {
		request.Tools = tools
		request.ToolCaller = func(name string, data []byte) (string, error) {
			return pool.CallTool(ctx, name, data)
		}
	}

	if err := msgLog.Record(request.Messages); err != nil {
		return errs.Error{Err: err, Reason: "Could not write the message log."}
	}

	st := client.Request(ctx, request)
	defer func() { _ = st.Close() }()
	// Whatever the engine exchanged is logged, even when the run fails.
	defer func() { _ = msgLog.Record(st.Messages()) }()

	for {
		for st.Next() {
			chunk, err := st.Current()
			if errors.Is(err, stream.ErrNoContent) {
				continue
			}
			if err != nil {
				return streamError(err, mod)
			}
			if chunk.Content == "" {
				continue
			}
			if err := r.send(ctx, chunk.Content); err != nil {
				return err
			}
		}
		if err := st.Err(); err != nil {
			return streamError(err, mod)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.warn(st.DrainWarnings())
		if err := msgLog.Record(st.Messages()); err != nil {
			return errs.Error{Err: err, Reason: "Could not write the message log."}
		}

		statuses := st.CallTools()
		s.warn(st.DrainWarnings())
		if len(statuses) == 0 {
			return nil
		}
		for _, status := range statuses {
			s.reporter.ToolCalled(status.Name, status.Err)
		}
		if err := msgLog.Record(st.Messages()); err != nil {
			return errs.Error{Err: err, Reason: "Could not write the message log."}
		}
	}
}

func (s *Service) warn(warnings []string) {
	for _, w := range warnings {
		s.reporter.Warn(w)
	}
}
