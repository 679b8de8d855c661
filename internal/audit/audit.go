// Package audit records mutating operations (password changes, roster
// imports, seat allocations) as JSON Lines in the data directory. The
// trail is append-only; rotation renames the current file to a
// timestamped sibling and starts fresh.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Op names an audited operation.
type Op string

const (
	OpSetPassword Op = "set_password"
	OpAllocate    Op = "allocate"
	OpImport      Op = "import_roster"
)

// Event is one audit record.
type Event struct {
	ID        string    `json:"id"`
	Op        Op        `json:"op"`
	Subject   string    `json:"subject,omitempty"` // entity key or session tag
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// Trail writes audit events to a single JSONL file.
type Trail struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	written  int64
	maxBytes int64
	log      *zap.Logger
}

// DefaultMaxBytes rotates the trail at 1 MiB, far beyond a term's worth
// of mutations.
const DefaultMaxBytes = 1 << 20

// Open creates (or continues) the trail at path.
func Open(path string, log *zap.Logger) (*Trail, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit trail: %w", err)
	}
	written := int64(0)
	if st, err := f.Stat(); err == nil {
		written = st.Size()
	}
	return &Trail{
		file:     f,
		path:     path,
		written:  written,
		maxBytes: DefaultMaxBytes,
		log:      log,
	}, nil
}

// Record appends one event and returns its generated operation id.
func (t *Trail) Record(op Op, subject, detail string) (string, error) {
	ev := Event{
		ID:        uuid.NewString(),
		Op:        op,
		Subject:   subject,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return "", fmt.Errorf("audit trail closed")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	n, err := t.file.Write(append(data, '\n'))
	if err != nil {
		return "", fmt.Errorf("write audit trail: %w", err)
	}
	t.written += int64(n)
	t.log.Debug("audit event recorded",
		zap.String("op", string(op)), zap.String("id", ev.ID))

	if t.written >= t.maxBytes {
		if err := t.rotateLocked(); err != nil {
			t.log.Warn("audit rotation failed", zap.Error(err))
		}
	}
	return ev.ID, nil
}

// rotateLocked renames the current file to a timestamped sibling and
// opens a new one. Caller holds t.mu.
func (t *Trail) rotateLocked() error {
	if err := t.file.Close(); err != nil {
		return err
	}
	backup := fmt.Sprintf("%s.%s", t.path, time.Now().Format("20060102-150405"))
	if err := os.Rename(t.path, backup); err != nil {
		return err
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	t.file = f
	t.written = 0
	return nil
}

// Close flushes and closes the trail.
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

// ReadAll returns every event currently in the trail file, oldest first.
// Rotated siblings are not included.
func ReadAll(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var events []Event
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			break
		}
		events = append(events, ev)
	}
	return events, nil
}
