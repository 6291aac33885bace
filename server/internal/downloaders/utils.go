package downloaders

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/locator"
)

const (
	DefaultFilename  = "video"
	DefaultExtension = "mp4"
)

var unsafeArg = regexp.MustCompile(`(\$\{)|(\&\&)`)

func argsSanitizer(params []string) []string {
	params = slices.DeleteFunc(params, func(e string) bool {
		return unsafeArg.MatchString(e)
	})

	params = slices.DeleteFunc(params, func(e string) bool {
		return e == ""
	})

	return params
}

// NormalizeFilename validates a user supplied output name. An empty name
// becomes "video". A name whose extension is not one of
// locator.DefaultExtensions gets ".mp4" appended.
func NormalizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultFilename
	}

	if strings.ContainsAny(name, `/\`) || name == ".." {
		return "", fmt.Errorf("filename %q must not contain path components: %w", name, internal.ErrInvalidInput)
	}
	if strings.ContainsFunc(name, unicode.IsControl) {
		return "", fmt.Errorf("filename contains control characters: %w", internal.ErrInvalidInput)
	}

	stem, ext := splitFilename(name)
	if !slices.Contains(locator.DefaultExtensions, ext) {
		return name + "." + DefaultExtension, nil
	}
	if stem == "" {
		return DefaultFilename + "." + ext, nil
	}

	return stem + "." + ext, nil
}

// splitFilename returns the stem and the lower cased extension of name,
// without the dot.
func splitFilename(name string) (string, string) {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), strings.ToLower(strings.TrimPrefix(ext, "."))
}

// lookupOrder puts the requested extension in front of the default ones.
func lookupOrder(ext string) []string {
	exts := make([]string, 0, len(locator.DefaultExtensions)+1)
	exts = append(exts, ext)
	for _, e := range locator.DefaultExtensions {
		if e != ext {
			exts = append(exts, e)
		}
	}
	return exts
}
