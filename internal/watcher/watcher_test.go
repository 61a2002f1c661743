package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTemplateFile(t *testing.T) {
	assert.True(t, isTemplateFile("templates/0-counter.html"))
	assert.True(t, isTemplateFile("UPPER.HTML"))
	assert.False(t, isTemplateFile("notes.txt"))
	assert.False(t, isTemplateFile("partial.html.swp"))
}

func TestTemplateWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	tw, err := New(50 * time.Millisecond)
	require.NoError(t, err)
	defer tw.Stop()
	require.NoError(t, tw.AddPath(dir))

	var mutex sync.Mutex
	var batches [][]string
	tw.AddHandler(func(paths []string) error {
		mutex.Lock()
		defer mutex.Unlock()
		batches = append(batches, paths)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tw.Start(ctx, nil)

	// A burst of writes to two template files.
	path1 := filepath.Join(dir, "0-counter.html")
	path2 := filepath.Join(dir, "1-item.html")
	require.NoError(t, os.WriteFile(path1, []byte("<div></div>"), 0o644))
	require.NoError(t, os.WriteFile(path2, []byte("<li></li>"), 0o644))
	require.NoError(t, os.WriteFile(path1, []byte("<div>x</div>"), 0o644))

	require.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(batches) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	mutex.Lock()
	defer mutex.Unlock()
	assert.Len(t, batches, 1, "burst collapses into one batch")
	assert.LessOrEqual(t, len(batches[0]), 2)
	assert.NotEmpty(t, batches[0])
}

func TestTemplateWatcher_IgnoresNonTemplates(t *testing.T) {
	dir := t.TempDir()
	tw, err := New(30 * time.Millisecond)
	require.NoError(t, err)
	defer tw.Stop()
	require.NoError(t, tw.AddPath(dir))

	var mutex sync.Mutex
	fired := 0
	tw.AddHandler(func(paths []string) error {
		mutex.Lock()
		defer mutex.Unlock()
		fired++
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tw.Start(ctx, nil)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0o644))
	time.Sleep(150 * time.Millisecond)

	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, 0, fired)
}
