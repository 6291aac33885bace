//go:build !unix

package status

import "github.com/marcopiovanello/yt-dlp-fetcher/server/internal"

func FreeSpace(path string) (uint64, error) {
	return 0, internal.ErrUnsupported
}
