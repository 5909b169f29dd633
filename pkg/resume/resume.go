// Package resume remembers which batch inputs are already done, so that an
// interrupted batch can be restarted without redoing them.
package resume

import (
	"bytes"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ErrStateCorrupt is reported when a state file exists but cannot be trusted.
var ErrStateCorrupt = errors.New("resume state corrupt")

const header = `# fimgs batch resume state
# one completed input path per line
`

// Tracker is a grow-only set of completed input identifiers, safe for
// concurrent use.
type Tracker struct {
	mu   sync.Mutex
	done map[string]struct{}
}

func New() *Tracker {
	return &Tracker{done: map[string]struct{}{}}
}

// Load reads the state file at path. It never fails: a missing file gives an
// empty tracker and an unreadable or corrupt one gives an empty tracker plus a
// warning. An empty path disables persistence.
func Load(path string, logger *slog.Logger) *Tracker {
	t := New()
	if path == "" {
		return t
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return t
	case err != nil:
		logger.Warn("resume state unreadable, starting from scratch", "path", path, "err", errors.Wrap(ErrStateCorrupt, err.Error()))
		return t
	}

	ids, err := parse(data)
	if err != nil {
		logger.Warn("resume state ignored, starting from scratch", "path", path, "err", err)
		return t
	}
	for _, id := range ids {
		t.done[id] = struct{}{}
	}
	logger.Debug("resume state loaded", "path", path, "completed", len(ids))
	return t
}

func parse(data []byte) ([]string, error) {
	if bytes.IndexByte(data, 0) != -1 {
		return nil, errors.Wrap(ErrStateCorrupt, "contains NUL bytes")
	}
	if !utf8.Valid(data) {
		return nil, errors.Wrap(ErrStateCorrupt, "not valid UTF-8")
	}

	var ids []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, nil
}

func (t *Tracker) IsComplete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.done[id]
	return ok
}

// MarkComplete is idempotent.
func (t *Tracker) MarkComplete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done[id] = struct{}{}
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.done)
}

// IDs returns completed identifiers sorted.
func (t *Tracker) IDs() []string {
	t.mu.Lock()
	ids := make([]string, 0, len(t.done))
	for id := range t.done {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Save writes the set to path through a temporary file and a rename, so a
// crash leaves either the old or the new state. An empty path does nothing.
func (t *Tracker) Save(path string) error {
	if path == "" {
		return nil
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	for _, id := range t.IDs() {
		buf.WriteString(id)
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create state directory %q", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "create temporary state file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %q", tmp.Name())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "sync %q", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %q", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replace %q", path)
	}
	return nil
}

// IsAlreadyProduced reports whether path exists and is a regular file.
func IsAlreadyProduced(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
