package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbalabanov/vx/internal/tree"
)

func TestRunRepeatsOnChange(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))

	w, err := New(root, tree.NewIgnore(nil), 20*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			calls.Add(1)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "f.txt"), []byte("x"), 0644))
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestIgnoredPaths(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, tree.NewIgnore([]string{"*.log"}), 0, nil)
	require.NoError(t, err)
	defer w.watcher.Close()

	assert.True(t, w.ignored(filepath.Join(root, tree.DataDir, "db", "000001.vlog")))
	assert.True(t, w.ignored(filepath.Join(root, "build.log")))
	assert.False(t, w.ignored(filepath.Join(root, "src", "main.go")))
}
