package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
)

func testWatchConfig() config.WatchConfig {
	return config.WatchConfig{
		Debounce:    50 * time.Millisecond,
		Patterns:    []string{"**/*.yaml"},
		ExcludeDirs: []string{".git"},
	}
}

func TestMatches(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, testWatchConfig(), nil)
	require.NoError(t, err)
	defer w.watcher.Close()

	assert.True(t, w.matches(filepath.Join(dir, "constraints.yaml")))
	assert.True(t, w.matches(filepath.Join(dir, "nested", "deep", "ir.yaml")))
	assert.False(t, w.matches(filepath.Join(dir, "notes.txt")))
}

func TestRunDebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, testWatchConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := w.Run(ctx)

	// A burst of writes inside one debounce window yields one event.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "constraints.yaml"), []byte("x"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case ev := <-events:
		assert.NotEmpty(t, ev.Paths)
	case <-time.After(3 * time.Second):
		t.Fatal("no event delivered")
	}

	select {
	case ev, ok := <-events:
		if ok {
			t.Fatalf("unexpected second event: %v", ev.Paths)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRunIgnoresUnmatchedFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, testWatchConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case ev := <-events:
		t.Fatalf("unexpected event for unmatched file: %v", ev.Paths)
	case <-time.After(300 * time.Millisecond):
	}
}
