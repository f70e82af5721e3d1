package watcher_test

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poltergeist/atlaspack/internal/watcher"
	"github.com/poltergeist/atlaspack/pkg/logger"
)

const settle = 50 * time.Millisecond

func newWatcher(t *testing.T) *watcher.FSNotifyWatcher {
	t.Helper()
	w, err := watcher.NewFSNotifyWatcher(nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func collect(t *testing.T, w *watcher.FSNotifyWatcher, dir string) <-chan []string {
	t.Helper()
	ch := make(chan []string, 8)
	require.NoError(t, w.Watch(dir, settle, func(files []string) { ch <- files }))
	return ch
}

func waitFiles(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case files := <-ch:
		return files
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change callback")
		return nil
	}
}

func assertQuiet(t *testing.T, ch <-chan []string) {
	t.Helper()
	select {
	case files := <-ch:
		t.Fatalf("unexpected change callback: %v", files)
	case <-time.After(4 * settle):
	}
}

func TestWatcher_BatchesChanges(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t)
	ch := collect(t, w, dir)

	for _, name := range []string{"a.png", "b.png", "c.PNG"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	files := waitFiles(t, ch)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "c.PNG"),
	}, files)
	assertQuiet(t, ch)
}

func TestWatcher_IgnoresNonImages(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t)
	ch := collect(t, w, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.png"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sprite.png~"), []byte("x"), 0644))
	assertQuiet(t, ch)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "hero.png"), []byte("x"), 0644))
	assert.Equal(t, []string{filepath.Join(dir, "hero.png")}, waitFiles(t, ch))
}

func TestWatcher_Exclusions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "raw"), 0755))
	w := newWatcher(t)
	require.NoError(t, w.SetExclusions([]string{"raw", "draft_*.png"}))
	ch := collect(t, w, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw", "a.png"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "draft_hero.png"), []byte("x"), 0644))
	assertQuiet(t, ch)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "hero.png"), []byte("x"), 0644))
	assert.Equal(t, []string{filepath.Join(dir, "hero.png")}, waitFiles(t, ch))
}

func TestWatcher_Recursive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "existing"), 0755))
	w := newWatcher(t)
	ch := collect(t, w, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing", "a.png"), []byte("x"), 0644))
	assert.Contains(t, waitFiles(t, ch), filepath.Join(dir, "existing", "a.png"))

	newDir := filepath.Join(dir, "created")
	require.NoError(t, os.Mkdir(newDir, 0755))
	assert.Contains(t, waitFiles(t, ch), newDir)

	require.NoError(t, os.WriteFile(filepath.Join(newDir, "b.png"), []byte("x"), 0644))
	assert.Contains(t, waitFiles(t, ch), filepath.Join(newDir, "b.png"))
}

func TestWatcher_SeparateRoots(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	w := newWatcher(t)
	chFirst := collect(t, w, first)
	chSecond := collect(t, w, second)

	require.NoError(t, os.WriteFile(filepath.Join(second, "b.png"), []byte("x"), 0644))
	assert.Equal(t, []string{filepath.Join(second, "b.png")}, waitFiles(t, chSecond))
	assertQuiet(t, chFirst)

	want := []string{first, second}
	sort.Strings(want)
	assert.Equal(t, want, w.List())
}

func TestWatcher_Remove(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t)
	ch := collect(t, w, dir)

	require.NoError(t, w.Remove(dir))
	assert.Empty(t, w.List())
	assert.Error(t, w.Remove(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("x"), 0644))
	assertQuiet(t, ch)
}

func TestWatcher_RemoveDeletedTree(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub", "nested")
	require.NoError(t, os.MkdirAll(sub, 0755))

	var logs bytes.Buffer
	w, err := watcher.NewFSNotifyWatcher(logger.CreateLoggerWithOutput("", "debug", &logs))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	require.NoError(t, w.Watch(dir, settle, func([]string) {}))

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "sub")))
	time.Sleep(2 * settle)

	require.NoError(t, w.Remove(dir))
	assert.Empty(t, w.List())
}

func TestWatcher_Errors(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t)

	assert.Error(t, w.Watch(filepath.Join(dir, "missing"), settle, func([]string) {}))
	assert.Empty(t, w.List())

	require.NoError(t, w.Watch(dir, settle, func([]string) {}))
	assert.Error(t, w.Watch(dir, settle, func([]string) {}))

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Watch(t.TempDir(), settle, func([]string) {}), watcher.ErrClosed)
}

func TestWatcher_CallbackPanicRecovered(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t)

	var mu sync.Mutex
	calls := 0
	done := make(chan struct{}, 2)
	require.NoError(t, w.Watch(dir, settle, func([]string) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		done <- struct{}{}
		if n == 1 {
			panic("boom")
		}
	}))

	for i := 0; i < 2; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte{byte(i)}, 0644))
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("callback %d not invoked", i+1)
		}
	}
}
