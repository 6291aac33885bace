package rest

import (
	"context"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/downloaders"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/kv"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/presets"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/queue"
)

// FormatsFetcher probes the renditions available for a url.
type FormatsFetcher interface {
	Formats(ctx context.Context, url string) (*internal.FormatsResult, error)
}

type ContainerArgs struct {
	MDB     *kv.Store
	MQ      *queue.MessageQueue
	Presets *presets.Store
	Fetcher FormatsFetcher
	// Optional, defaults to spawning real processes.
	Launcher downloaders.Launcher
}

type downloadResponse struct {
	DownloadId string `json:"download_id"`
}

type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type formatsRequest struct {
	URL string `json:"url"`
}
