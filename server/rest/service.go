package rest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/downloaders"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/kv"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/presets"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/queue"
)

type Service struct {
	mdb     *kv.Store
	mq      *queue.MessageQueue
	fetcher FormatsFetcher
	opts    []downloaders.Option
}

func NewService(args *ContainerArgs) *Service {
	opts := []downloaders.Option{downloaders.WithLauncher(args.Launcher)}
	if args.Presets != nil {
		opts = append(opts, downloaders.WithResolver(args.Presets))
	}

	return &Service{
		mdb:     args.MDB,
		mq:      args.MQ,
		fetcher: args.Fetcher,
		opts:    opts,
	}
}

// StartDownload validates req, registers a queued job and hands it to the
// queue. It returns as soon as the job is registered.
func (s *Service) StartDownload(ctx context.Context, req internal.DownloadRequest) (string, error) {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return "", fmt.Errorf("url is required: %w", internal.ErrInvalidInput)
	}

	filename, err := downloaders.NormalizeFilename(req.Filename)
	if err != nil {
		return "", err
	}
	req.Filename = filename

	req.Quality = strings.TrimSpace(req.Quality)
	if req.Quality == "" {
		req.Quality = presets.DefaultQuality
	}

	job := s.mdb.Create(req)
	s.mq.Publish(downloaders.NewGenericDownload(s.mdb, job.Id, s.opts...))

	slog.Info("download queued",
		slog.String("id", job.Id),
		slog.String("url", job.URL),
		slog.String("filename", job.Filename),
		slog.String("quality", job.Quality),
	)

	return job.Id, nil
}

func (s *Service) GetStatus(ctx context.Context, id string) (internal.Job, error) {
	return s.mdb.Get(id)
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	slog.Info("cancelling download", slog.String("id", id))
	return s.mdb.Cancel(id)
}

func (s *Service) Pause(ctx context.Context, id string) error {
	return s.mdb.Pause(id)
}

func (s *Service) Resume(ctx context.Context, id string) error {
	return s.mdb.Resume(id)
}

// FetchResult opens the file of a completed job. The caller closes it.
func (s *Service) FetchResult(ctx context.Context, id string) (*os.File, internal.Job, error) {
	job, err := s.mdb.Get(id)
	if err != nil {
		return nil, job, err
	}

	if job.Status != internal.StatusCompleted {
		return nil, job, fmt.Errorf("job %s is %s: %w", id, job.Status, internal.ErrNotReady)
	}

	fd, err := os.Open(job.File)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, job, fmt.Errorf("file of job %s is gone: %w", id, internal.ErrNotFound)
	}
	if err != nil {
		return nil, job, err
	}

	return fd, job, nil
}

func (s *Service) CheckFormats(ctx context.Context, url string) (*internal.FormatsResult, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("formats probe: %w", internal.ErrUnsupported)
	}
	return s.fetcher.Formats(ctx, url)
}

func (s *Service) Running(ctx context.Context) ([]internal.Job, error) {
	select {
	case <-ctx.Done():
		return nil, context.Canceled
	default:
		return s.mdb.All(), nil
	}
}

// Clear removes a terminal job from the registry, the file stays on disk.
func (s *Service) Clear(ctx context.Context, id string) error {
	return s.mdb.Delete(id)
}

// Shutdown cancels every live job and waits for the queue to drain.
func (s *Service) Shutdown() {
	s.mdb.CancelAll()
	s.mq.Stop()
}
