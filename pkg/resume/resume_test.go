package resume

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestLoadMissingFile(t *testing.T) {
	logger, logs := captureLogger()
	tr := Load(filepath.Join(t.TempDir(), "state.txt"), logger)
	assert.Equal(t, 0, tr.Len())
	assert.NotContains(t, logs.String(), "WARN")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.txt")
	tr := New()
	for _, id := range []string{"b.png", "a dir/a.png", "c.jpg", "a dir/a.png"} {
		tr.MarkComplete(id)
	}
	require.NoError(t, tr.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, header+"a dir/a.png\nb.png\nc.jpg\n", string(data))

	logger, _ := captureLogger()
	loaded := Load(path, logger)
	assert.Equal(t, []string{"a dir/a.png", "b.png", "c.jpg"}, loaded.IDs())
	assert.True(t, loaded.IsComplete("c.jpg"))
	assert.False(t, loaded.IsComplete("d.jpg"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestLoadSkipsCommentsAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.txt")
	require.NoError(t, os.WriteFile(path, []byte("# hello\n\nx.png\r\n# comment\r\n\r\ny.png"), 0o644))

	logger, _ := captureLogger()
	assert.Equal(t, []string{"x.png", "y.png"}, Load(path, logger).IDs())
}

func TestIDsKeepSurroundingWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.txt")
	ids := []string{" lead.png", "trail.png ", "\ttab.png"}
	tr := New()
	for _, id := range ids {
		tr.MarkComplete(id)
	}
	require.NoError(t, tr.Save(path))

	logger, _ := captureLogger()
	loaded := Load(path, logger)
	for _, id := range ids {
		assert.True(t, loaded.IsComplete(id), "%q", id)
	}
	assert.False(t, loaded.IsComplete("lead.png"))
	assert.Equal(t, 3, loaded.Len())
}

func TestLoadCorruptFile(t *testing.T) {
	for name, data := range map[string][]byte{
		"nul":     []byte("a.png\n\x00\nb.png\n"),
		"invalid": {'a', '\n', 0xff, 0xfe, '\n'},
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.txt")
			require.NoError(t, os.WriteFile(path, data, 0o644))

			logger, logs := captureLogger()
			tr := Load(path, logger)
			assert.Equal(t, 0, tr.Len())
			assert.Contains(t, logs.String(), "level=WARN")
			assert.Contains(t, logs.String(), ErrStateCorrupt.Error())
		})
	}
}

func TestLoadUnreadable(t *testing.T) {
	dir := t.TempDir()
	logger, logs := captureLogger()
	// a directory cannot be read as a file
	tr := Load(dir, logger)
	assert.Equal(t, 0, tr.Len())
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestEmptyPathDisablesPersistence(t *testing.T) {
	logger, _ := captureLogger()
	tr := Load("", logger)
	tr.MarkComplete("x")
	assert.NoError(t, tr.Save(""))
}

func TestConcurrentMarks(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.MarkComplete(string(rune('a'+g)) + string(rune('a'+i%26)))
				_ = tr.IsComplete("zz")
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 8*26, tr.Len())
}

func TestIsAlreadyProduced(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "out.png")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, IsAlreadyProduced(file))
	assert.False(t, IsAlreadyProduced(dir))
	assert.False(t, IsAlreadyProduced(filepath.Join(dir, "missing.png")))
}
