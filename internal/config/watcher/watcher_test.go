package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpWrite, "write"},
		{OpCreate, "create"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}

func TestConvertOp(t *testing.T) {
	op, ok := convertOp(fsnotify.Create | fsnotify.Write)
	assert.True(t, ok)
	assert.Equal(t, OpCreate, op)

	op, ok = convertOp(fsnotify.Rename)
	assert.True(t, ok)
	assert.Equal(t, OpRename, op)

	_, ok = convertOp(fsnotify.Chmod)
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	w, err := New("config.json", WithDebounce(5*time.Millisecond))
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(w.Path()))
	assert.Equal(t, 5*time.Millisecond, w.debounce)
}

func TestWatcher_ReportsCoalescedChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	w, err := New(path, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(e Event) { events <- e })
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o644))
	for i := range 3 {
		require.NoError(t, os.WriteFile(path, []byte(`{"n":`+string(rune('0'+i))+`}`), 0o644))
	}

	select {
	case e := <-events:
		assert.Equal(t, w.Path(), e.Path)
		assert.False(t, e.Time.IsZero())
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case e := <-events:
		t.Fatalf("burst not coalesced: %+v", e)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing", "config.json"))
	require.NoError(t, err)

	err = w.Run(context.Background(), func(Event) {})
	assert.Error(t, err)
}
