// Package tablefile implements the locked file channel the table readers
// and stores sit on: shared-lock reads, atomic whole-file replacement and
// durable appends against flat delimited-text files.
//
// Locking is two-level. A per-path RWMutex serializes callers inside this
// process; a gofrs/flock advisory lock on a ".lock" sibling coordinates
// with other processes sharing the same filesystem. Writers never touch
// the target in place: Replace stages the new content in a ".tmp" sibling
// and renames it over the original, so readers observe either the old or
// the new file, never a mix.
package tablefile

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// ErrStorageUnavailable reports a file that could not be opened for a
// required write. Reads never return it; a missing table is an empty
// table.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Channel performs locked reads and writes on flat table files.
type Channel struct {
	log *zap.Logger

	mu    sync.Mutex
	paths map[string]*sync.RWMutex
}

// NewChannel returns a channel logging through log. A nil logger is
// replaced with a no-op one.
func NewChannel(log *zap.Logger) *Channel {
	if log == nil {
		log = zap.NewNop()
	}
	return &Channel{
		log:   log,
		paths: make(map[string]*sync.RWMutex),
	}
}

func (c *Channel) pathMu(path string) *sync.RWMutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	mu, ok := c.paths[path]
	if !ok {
		mu = &sync.RWMutex{}
		c.paths[path] = mu
	}
	return mu
}

func lockPath(path string) string {
	return path + ".lock"
}

func tmpPath(path string) string {
	return path + ".tmp"
}

// Read acquires a shared lock and returns every record in the file. A
// file that does not exist or cannot be opened yields (nil, nil): an
// empty store is a valid store.
func (c *Channel) Read(path string) ([][]string, error) {
	mu := c.pathMu(path)
	mu.RLock()
	defer mu.RUnlock()

	lk := flock.New(lockPath(path))
	if err := lk.RLock(); err != nil {
		c.log.Debug("shared lock unavailable, treating table as empty",
			zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	defer lk.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	return DecodeAll(string(data)), nil
}

// Replace atomically rewrites the file with the given rows. The new
// content is staged in a temporary sibling, flushed to disk and renamed
// over the original; on any failure before the rename the original is
// untouched.
func (c *Channel) Replace(path string, rows [][]string) error {
	mu := c.pathMu(path)
	mu.Lock()
	defer mu.Unlock()

	lk := flock.New(lockPath(path))
	if err := lk.Lock(); err != nil {
		return fmt.Errorf("%w: lock %s: %v", ErrStorageUnavailable, path, err)
	}
	defer lk.Close()

	tmp := tmpPath(path)
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrStorageUnavailable, tmp, err)
	}

	w := bufio.NewWriter(f)
	var werr error
	for _, row := range rows {
		if _, werr = w.WriteString(EncodeRow(row)); werr != nil {
			break
		}
		if werr = w.WriteByte('\n'); werr != nil {
			break
		}
	}
	if werr == nil {
		werr = w.Flush()
	}
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, werr)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	c.log.Debug("table replaced", zap.String("path", path), zap.Int("rows", len(rows)))
	return nil
}

// Append durably adds one record to the end of the file, creating it if
// absent. Meant for additive, order-append-only data.
func (c *Channel) Append(path string, row []string) error {
	mu := c.pathMu(path)
	mu.Lock()
	defer mu.Unlock()

	lk := flock.New(lockPath(path))
	if err := lk.Lock(); err != nil {
		return fmt.Errorf("%w: lock %s: %v", ErrStorageUnavailable, path, err)
	}
	defer lk.Close()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrStorageUnavailable, path, err)
	}
	_, werr := f.WriteString(EncodeRow(row) + "\n")
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("append %s: %w", path, werr)
	}
	return nil
}
