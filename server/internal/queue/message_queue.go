package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/downloaders"
	"golang.org/x/sync/semaphore"
)

const errStopped = "download queue stopped"

// MessageQueue runs downloads with bounded concurrency. Publishing never
// blocks: every download waits for a slot in its own goroutine.
type MessageQueue struct {
	concurrency int
	sem         *semaphore.Weighted
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewMessageQueue(size int) (*MessageQueue, error) {
	if size <= 0 {
		return nil, errors.New("invalid queue size")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &MessageQueue{
		concurrency: size,
		sem:         semaphore.NewWeighted(int64(size)),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Publish download job
func (m *MessageQueue) Publish(d downloaders.Downloader) {
	if m.ctx.Err() != nil {
		slog.Warn("queue stopped, dropping download", slog.String("id", d.GetId()))
		d.Discard(errStopped)
		return
	}

	m.wg.Add(1)
	go m.run(d)

	slog.Info("published download", slog.String("id", d.GetId()))
}

func (m *MessageQueue) run(d downloaders.Downloader) {
	defer m.wg.Done()

	if err := m.sem.Acquire(m.ctx, 1); err != nil {
		slog.Warn("queue stopped before download started", slog.String("id", d.GetId()))
		d.Discard(errStopped)
		return
	}
	defer m.sem.Release(1)

	slog.Info("download worker started", slog.String("id", d.GetId()))

	if err := d.Start(m.ctx); err != nil {
		slog.Warn("download ended with error", slog.String("id", d.GetId()), slog.Any("err", err))
	}
}

func (m *MessageQueue) Concurrency() int { return m.concurrency }

// Stop releases waiting downloads and blocks until running ones return.
func (m *MessageQueue) Stop() {
	m.cancel()
	m.wg.Wait()
}
