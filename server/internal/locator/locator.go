package locator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
)

// Files below this size are ignored by the fallback scan, they are most likely
// empty placeholders left behind by the downloader.
const MinFallbackSize = 1024

var DefaultExtensions = []string{"mp4", "mkv", "webm", "avi"}

// NotFoundError reports the files actually present in the scanned directory.
type NotFoundError struct {
	Dir     string
	Stem    string
	Present []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no output for %q in %s (present: %s)", e.Stem, e.Dir, strings.Join(e.Present, ", "))
}

func (e *NotFoundError) Unwrap() error { return internal.ErrNotFound }

type entry struct {
	path    string
	size    int64
	modTime time.Time
}

// Locate finds the file the downloader produced for stem inside dir.
//
// The final extension depends on the negotiated format, so each expected
// extension is probed in order first. When none matches, the newest regular
// file in dir carrying an expected extension (or none at all) and larger
// than MinFallbackSize is returned. With concurrent jobs sharing dir the
// fallback may pick up a sibling's file; callers should use unique stems.
func Locate(dir, stem string, exts []string) (string, error) {
	for _, ext := range exts {
		p := filepath.Join(dir, stem+"."+normalizeExt(ext))
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}

	candidates, present, err := gatherEntries(dir, exts)
	if err != nil {
		return "", err
	}

	if best := newestEntry(candidates); best != nil {
		return best.path, nil
	}

	return "", &NotFoundError{Dir: dir, Stem: stem, Present: present}
}

func gatherEntries(dir string, exts []string) ([]entry, []string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[normalizeExt(ext)] = struct{}{}
	}

	var (
		result  = make([]entry, 0, len(items))
		present = make([]string, 0, len(items))
	)

	for _, item := range items {
		present = append(present, item.Name())

		if !item.Type().IsRegular() {
			continue
		}

		ext := normalizeExt(filepath.Ext(item.Name()))
		if _, ok := allowed[ext]; !ok && ext != "" {
			continue
		}

		info, err := item.Info()
		if err != nil || info.Size() < MinFallbackSize {
			continue
		}

		result = append(result, entry{
			path:    filepath.Join(dir, item.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}

	return result, present, nil
}

func newestEntry(entries []entry) *entry {
	if len(entries) == 0 {
		return nil
	}
	newest := 0
	for i := 1; i < len(entries); i++ {
		if entries[i].modTime.After(entries[newest].modTime) {
			newest = i
		}
	}
	return &entries[newest]
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
