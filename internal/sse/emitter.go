// Package sse writes streamed fragments as server-sent-event style frames:
//
//	data: {"content": "<fragment>"}
//	<blank line>
package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

const (
	framePrefix = `data: {"content": `
	frameSuffix = "}\n\n"
)

type flusher interface {
	Flush() error
}

// Emitter writes one frame per fragment to an output sink.
type Emitter struct {
	mu  sync.Mutex
	w   io.Writer
	buf bytes.Buffer
}

// NewEmitter returns an Emitter writing to w. If w has a Flush() error
// method it is flushed after every frame.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes fragment as a single frame. The frame is encoded in full before
// anything is written, so a failure never leaves a partial frame behind.
func (e *Emitter) Emit(fragment string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.buf.Reset()
	if err := AppendFrame(&e.buf, fragment); err != nil {
		return err
	}
	if _, err := e.w.Write(e.buf.Bytes()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if f, ok := e.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush frame: %w", err)
		}
	}
	return nil
}

// AppendFrame encodes fragment as a frame into buf. Non-ASCII text is kept
// as is; only what JSON requires is escaped.
func AppendFrame(buf *bytes.Buffer, fragment string) error {
	buf.WriteString(framePrefix)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fragment); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	// Encode terminates the value with a newline.
	buf.Truncate(buf.Len() - 1)
	buf.WriteString(frameSuffix)
	return nil
}
