package audit

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	trail, err := Open(path, nil)
	require.NoError(t, err)
	defer trail.Close()

	id1, err := trail.Record(OpSetPassword, "1AB21CS001", "")
	require.NoError(t, err)
	id2, err := trail.Record(OpAllocate, "2025-11-05/AM", "120 seats")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	events, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, OpSetPassword, events[0].Op)
	assert.Equal(t, "1AB21CS001", events[0].Subject)
	assert.Equal(t, id2, events[1].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestReadAllMissingTrail(t *testing.T) {
	events, err := ReadAll(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	trail, err := Open(path, nil)
	require.NoError(t, err)
	defer trail.Close()
	trail.maxBytes = 1 // force rotation on the next write
	_, err = trail.Record(OpImport, "roster", strings.Repeat("x", 64))
	require.NoError(t, err)

	trail.maxBytes = DefaultMaxBytes
	_, err = trail.Record(OpImport, "roster", "second")
	require.NoError(t, err)

	// Current file holds only the event written after rotation.
	events, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "second", events[0].Detail)

	backups, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.NotEmpty(t, backups, "rotated sibling must exist")
}

func TestRecordAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	trail, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, trail.Close())

	_, err = trail.Record(OpSetPassword, "x", "")
	assert.Error(t, err)
}
