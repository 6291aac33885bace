package downloaders

import (
	"log/slog"
	"strings"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/kv"
)

type DownloaderBase struct {
	Id    string
	store *kv.Store
}

func (d *DownloaderBase) GetId() string { return d.Id }

func (d *DownloaderBase) ShortId() string { return shortId(d.Id) }

func (d *DownloaderBase) job() (internal.Job, error) { return d.store.Get(d.Id) }

// fail records detail as the job error. A job that reached a terminal state
// in the meantime (i.e. it got cancelled) keeps it.
func (d *DownloaderBase) fail(detail string) {
	if err := d.store.Fail(d.Id, detail); err != nil {
		slog.Debug("failure not recorded",
			slog.String("id", d.ShortId()),
			slog.String("detail", detail),
			slog.Any("err", err),
		)
		return
	}
	slog.Warn("download failed",
		slog.String("id", d.ShortId()),
		slog.String("detail", detail),
	)
}

func (d *DownloaderBase) Discard(reason string) { d.fail("Error: " + reason) }

func shortId(id string) string {
	return strings.Split(id, "-")[0]
}
