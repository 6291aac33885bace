package status

import (
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/config"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/kv"
)

type Status struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Paused    int `json:"paused"`
	Completed int `json:"completed"`
	Error     int `json:"error"`
	Cancelled int `json:"cancelled"`

	FreeSpace    uint64 `json:"free_space"`
	FreeSpaceStr string `json:"free_space_str"`
	DownloadPath string `json:"download_path"`
}

// Collect counts the jobs of mdb by state and reads the free space left in
// the download directory.
func Collect(mdb *kv.Store, downloadPath string) Status {
	s := Status{DownloadPath: downloadPath}

	for _, job := range mdb.All() {
		switch job.Status {
		case internal.StatusQueued:
			s.Queued++
		case internal.StatusRunning:
			s.Running++
		case internal.StatusPaused:
			s.Paused++
		case internal.StatusCompleted:
			s.Completed++
		case internal.StatusError:
			s.Error++
		case internal.StatusCancelled:
			s.Cancelled++
		}
	}

	free, err := FreeSpace(downloadPath)
	if err != nil {
		slog.Debug("free space unavailable", slog.String("path", downloadPath), slog.Any("err", err))
		s.FreeSpaceStr = "Unknown"
		return s
	}

	s.FreeSpace = free
	s.FreeSpaceStr = humanize.IBytes(free)
	return s
}

func ApplyRouter(mdb *kv.Store) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			internal.WriteJSON(w, http.StatusOK, Collect(mdb, config.Instance().Paths.DownloadPath))
		})
	}
}
