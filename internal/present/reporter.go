package present

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Reporter writes progress diagnostics to the side channel. A nil Reporter,
// or one created quiet, writes nothing.
type Reporter struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
	quiet  bool
}

// NewReporter returns a Reporter writing to w.
func NewReporter(w io.Writer, styles Styles, quiet bool) *Reporter {
	return &Reporter{w: w, styles: styles, quiet: quiet}
}

// ServerStarted reports a provider server that came up.
func (r *Reporter) ServerStarted(name string) {
	if !r.enabled() {
		return
	}
	r.printf("%s %s\n", r.styles.Success.Render("started"), r.styles.Server.Render(name))
}

// ServerFailed reports a provider server that was left out.
func (r *Reporter) ServerFailed(name string, err error) {
	if !r.enabled() {
		return
	}
	r.printf(
		"%s\n%s\n",
		lipgloss.JoinHorizontal(lipgloss.Center, r.styles.WarnHeader.String(), " could not start "+r.styles.Server.Render(name)),
		r.styles.ErrPadding.Render(r.styles.ErrorDetails.Render(err.Error())),
	)
}

// ToolsFailed reports a provider server that came up but could not list its
// tools. It is left out of the catalog.
func (r *Reporter) ToolsFailed(name string, err error) {
	if !r.enabled() {
		return
	}
	r.printf(
		"%s\n%s\n",
		lipgloss.JoinHorizontal(lipgloss.Center, r.styles.WarnHeader.String(), " could not list the tools of "+r.styles.Server.Render(name)),
		r.styles.ErrPadding.Render(r.styles.ErrorDetails.Render(err.Error())),
	)
}

// ToolCalled reports a tool call made on the model's behalf.
func (r *Reporter) ToolCalled(name string, err error) {
	if !r.enabled() {
		return
	}
	if err != nil {
		r.printf("%s %s %s\n", r.styles.Comment.Render("tool"), r.styles.Tool.Render(name), r.styles.ErrorDetails.Render("failed: "+err.Error()))
		return
	}
	r.printf("%s %s\n", r.styles.Comment.Render("tool"), r.styles.Tool.Render(name))
}

// Warn reports a non-fatal problem.
func (r *Reporter) Warn(msg string) {
	if !r.enabled() {
		return
	}
	r.printf("%s %s\n", r.styles.WarnHeader.String(), msg)
}

func (r *Reporter) enabled() bool {
	return r != nil && !r.quiet && r.w != nil
}

func (r *Reporter) printf(format string, a ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.w, format, a...)
}
