// Package output writes rendered results to disk under names derived from
// their track and offset.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/eleven-am/reelsync/internal/domain"
)

// FileName is "<track name without extension>_<offset>s.mp4".
func FileName(trackName string, offset float64) string {
	stem := strings.TrimSuffix(filepath.Base(trackName), filepath.Ext(trackName))
	if stem == "" || stem == "." {
		stem = "track"
	}
	return fmt.Sprintf("%s_%ss.mp4", stem, strconv.FormatFloat(offset, 'f', -1, 64))
}

// Writer places results in one directory. Two results that map to the same
// file name get " - dupN" suffixes instead of overwriting each other.
type Writer struct {
	dir string

	mu       sync.Mutex
	owners   map[string]string
	counters map[string]int
}

func NewWriter(dir string) *Writer {
	return &Writer{
		dir:      dir,
		owners:   make(map[string]string),
		counters: make(map[string]int),
	}
}

// Write stores one result and returns its path.
func (w *Writer) Write(r domain.RenderResult) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := w.resolve(r.ID, filepath.Join(w.dir, FileName(r.Name, r.Offset)))
	if err := os.WriteFile(path, r.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

func (w *Writer) resolve(owner, requested string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if cur, ok := w.owners[requested]; !ok || cur == owner {
		w.owners[requested] = owner
		return requested
	}

	ext := filepath.Ext(requested)
	stem := strings.TrimSuffix(requested, ext)

	counter := w.counters[requested]
	if counter == 0 {
		counter = 1
	}
	for {
		candidate := fmt.Sprintf("%s - dup%d%s", stem, counter, ext)
		if cur, ok := w.owners[candidate]; !ok || cur == owner {
			w.counters[requested] = counter + 1
			w.owners[candidate] = owner
			return candidate
		}
		counter++
	}
}
