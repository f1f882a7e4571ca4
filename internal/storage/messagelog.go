// Package storage persists the message audit log.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/dotcommander/dolphin/internal/proto"
)

// Entry is one line of the message log.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	Model     string    `json:"model,omitempty"`
	proto.Message
}

// MessageLog is an append-only JSONL log of exchanged messages. Writers in
// other processes are serialized through a lock file next to the log.
//
// A nil *MessageLog discards everything.
type MessageLog struct {
	mu      sync.Mutex
	path    string
	lock    *flock.Flock
	model   string
	runID   string
	written int
	now     func() time.Time
}

// OpenMessageLog prepares the log at path. The file is created on first
// write; existing content is never truncated. Every entry written through the
// returned log carries the same run id.
func OpenMessageLog(path, model string) (*MessageLog, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("could not create message log directory: %w", err)
	}
	return &MessageLog{
		path:  path,
		lock:  flock.New(path + ".lock"),
		model: model,
		runID: uuid.NewString(),
		now:   time.Now,
	}, nil
}

// Record appends the messages of conversation that were not recorded yet.
// conversation must only ever grow between calls.
func (l *MessageLog) Record(conversation []proto.Message) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.written >= len(conversation) {
		return nil
	}
	if err := l.appendLocked(conversation[l.written:]); err != nil {
		return err
	}
	l.written = len(conversation)
	return nil
}

func (l *MessageLog) appendLocked(msgs []proto.Message) error {
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock message log: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open message log: %w", err)
	}
	defer func() { _ = file.Close() }()

	var bts []byte
	for _, msg := range msgs {
		line, err := json.Marshal(Entry{Timestamp: l.now().UTC(), RunID: l.runID, Model: l.model, Message: msg})
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		bts = append(bts, line...)
		bts = append(bts, '\n')
	}
	if _, err := file.Write(bts); err != nil {
		return fmt.Errorf("write message log: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync message log: %w", err)
	}
	return nil
}

// Close releases the lock file handle.
func (l *MessageLog) Close() error {
	if l == nil {
		return nil
	}
	if err := l.lock.Close(); err != nil {
		return fmt.Errorf("close message log: %w", err)
	}
	return nil
}
