package downloaders

import (
	"log/slog"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/kv"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/progress"
)

// consumeLogs applies every output line to the job, in emission order, and
// returns the last line that looked like an error. The channel is always
// drained so the process never blocks on a full pipe, even after the job has
// been cancelled.
func consumeLogs(store *kv.Store, id string, lines <-chan string) (lastError string) {
	for line := range lines {
		u := progress.Parse(line)
		if u.Empty() {
			continue
		}

		if u.ErrorCandidate {
			lastError = u.Message
			slog.Error("yt-dlp process error",
				slog.String("id", shortId(id)),
				slog.String("err", u.Message),
			)
		} else {
			slog.Debug("yt-dlp output",
				slog.String("id", shortId(id)),
				slog.String("line", u.Message),
			)
		}

		if err := store.ApplyProgress(id, u); err != nil {
			slog.Debug("progress dropped", slog.String("id", shortId(id)), slog.Any("err", err))
		}
	}

	return lastError
}
