package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "nginline.dev/pkg/nginline/internal/model"
)

func TestFSNotifyWatcher_Watch(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "app.html")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batches := make(chan []m.Path, 4)
	done := make(chan error, 1)

	go func() {
		done <- NewFSNotifyWatcher(20*time.Millisecond).Watch(ctx, []m.Path{m.Path(root)}, func(changed []m.Path) {
			batches <- changed
		})
	}()

	// The watcher needs a moment to register its directories.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(target, []byte("v2"), 0o600))

	select {
	case changed := <-batches:
		assert.Contains(t, changed, m.Path(target))
	case <-ctx.Done():
		t.Fatal("no change reported")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestFSNotifyWatcher_MissingRoot(t *testing.T) {
	err := NewFSNotifyWatcher(0).Watch(context.Background(), []m.Path{m.Path(filepath.Join(t.TempDir(), "missing"))}, func([]m.Path) {})
	require.Error(t, err)
}

func TestDrain(t *testing.T) {
	pending := map[m.Path]struct{}{"b": {}, "a": {}}

	assert.Equal(t, []m.Path{"a", "b"}, drain(pending))
	assert.Empty(t, pending)
}
