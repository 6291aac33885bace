package rpc

import (
	"context"
	"log/slog"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/rest"
)

// Service exposes the job operations as net/rpc methods. Every method is a
// thin adapter over rest.Service so both surfaces behave the same.
type Service struct {
	svc *rest.Service
}

type NoArgs struct{}

type FormatsArgs struct {
	URL string `json:"url"`
}

// Exec queues a download.
// The result of the execution is the newly created job id.
func (s *Service) Exec(args internal.DownloadRequest, result *string) error {
	id, err := s.svc.StartDownload(context.Background(), args)
	if err != nil {
		return err
	}

	*result = id
	return nil
}

// Progress retrieves the snapshot of a specific job given its id
func (s *Service) Progress(args string, job *internal.Job) error {
	j, err := s.svc.GetStatus(context.Background(), args)
	if err != nil {
		return err
	}

	*job = j
	return nil
}

// Formats retrieves available renditions for a given resource
func (s *Service) Formats(args FormatsArgs, meta *internal.FormatsResult) error {
	res, err := s.svc.CheckFormats(context.Background(), args.URL)
	if err != nil {
		return err
	}

	*meta = *res
	return nil
}

// Running retrieves a snapshot of every job
func (s *Service) Running(args NoArgs, running *[]internal.Job) error {
	jobs, err := s.svc.Running(context.Background())
	if err != nil {
		return err
	}

	*running = jobs
	return nil
}

// Kill cancels a job given its id
func (s *Service) Kill(args string, killed *string) error {
	slog.Info("Trying killing process with id", slog.String("id", args))

	if err := s.svc.Cancel(context.Background(), args); err != nil {
		slog.Info("failed killing process", slog.String("id", args), slog.Any("err", err))
		return err
	}

	*killed = args
	return nil
}

func (s *Service) Pause(args string, paused *string) error {
	if err := s.svc.Pause(context.Background(), args); err != nil {
		return err
	}

	*paused = args
	return nil
}

func (s *Service) Resume(args string, resumed *string) error {
	if err := s.svc.Resume(context.Background(), args); err != nil {
		return err
	}

	*resumed = args
	return nil
}

// Clear removes a terminal job from the registry
func (s *Service) Clear(args string, cleared *string) error {
	slog.Info("Clearing process with id", slog.String("id", args))

	if err := s.svc.Clear(context.Background(), args); err != nil {
		return err
	}

	*cleared = args
	return nil
}
