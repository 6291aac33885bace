// Package progress turns raw yt-dlp output lines into progress updates.
//
// The downloader has no structured progress protocol when invoked with
// --newline, so parsing is best effort: only a percentage and a free-text
// message are extracted. Unparseable lines never fail a job.
package progress

import (
	"strconv"
	"strings"
)

const downloadMarker = "[download]"

type Update struct {
	// Latest human readable line, empty for blank lines.
	Message string
	// Percent is only meaningful when HasPercent is set.
	Percent    float64
	HasPercent bool
	// The line looks like an error; the last one seen before a failed exit
	// becomes the job error detail.
	ErrorCandidate bool
}

func (u Update) Empty() bool { return u.Message == "" }

func Parse(line string) Update {
	line = strings.TrimSpace(line)
	if line == "" {
		return Update{}
	}

	u := Update{Message: line}

	if strings.Contains(line, downloadMarker) && strings.Contains(line, "%") {
		u.Percent, u.HasPercent = parsePercent(line)
	}

	if strings.Contains(strings.ToLower(line), "error") {
		u.ErrorCandidate = true
	}

	return u
}

// token right before the first '%', e.g. "[download]  42.5% of 10MiB" -> 42.5
func parsePercent(line string) (float64, bool) {
	head, _, _ := strings.Cut(line, "%")

	fields := strings.Fields(head)
	if len(fields) == 0 {
		return 0, false
	}

	p, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return 0, false
	}

	return p, true
}
