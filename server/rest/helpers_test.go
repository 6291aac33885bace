package rest

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/config"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/downloaders"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/kv"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/queue"
)

type fakeProcess struct {
	lines chan string
	done  chan struct{}
	once  sync.Once
	code  int
}

func (p *fakeProcess) exit() {
	p.once.Do(func() {
		close(p.lines)
		close(p.done)
	})
}

func (p *fakeProcess) Lines() <-chan string { return p.lines }

func (p *fakeProcess) Wait() (int, error) {
	<-p.done
	return p.code, nil
}

func (p *fakeProcess) Terminate() error { p.exit(); return nil }
func (p *fakeProcess) Pause() error     { return nil }
func (p *fakeProcess) Resume() error    { return nil }

// fileWritingLauncher behaves like a successful downloader writing content.
// URLs containing "hang" never exit on their own.
func fileWritingLauncher(t *testing.T, content string) downloaders.Launcher {
	return downloaders.LauncherFunc(func(name string, args []string, dir string) (downloaders.Process, error) {
		p := &fakeProcess{lines: make(chan string, 1), done: make(chan struct{})}

		if strings.Contains(args[len(args)-1], "hang") {
			p.lines <- "[download]   1.0% of 10MiB"
			return p, nil
		}

		out := args[slices.Index(args, "-o")+1]
		path := strings.Replace(out, ".%(ext)s", ".mp4", 1)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Errorf("write output: %v", err)
		}

		p.lines <- "[download] 100% of 1KiB"
		p.exit()
		return p, nil
	})
}

type stubFetcher struct {
	res *internal.FormatsResult
	err error
}

func (s stubFetcher) Formats(ctx context.Context, url string) (*internal.FormatsResult, error) {
	return s.res, s.err
}

func newTestService(t *testing.T, fetcher FormatsFetcher) (*Service, string) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Instance()
	prev := cfg.Paths.DownloadPath
	cfg.Paths.DownloadPath = dir
	t.Cleanup(func() { cfg.Paths.DownloadPath = prev })

	svc := NewService(newTestArgs(t, fetcher))
	t.Cleanup(svc.Shutdown)

	return svc, dir
}

func newTestArgs(t *testing.T, fetcher FormatsFetcher) *ContainerArgs {
	t.Helper()

	mq, err := queue.NewMessageQueue(2)
	if err != nil {
		t.Fatalf("NewMessageQueue returned error: %v", err)
	}

	return &ContainerArgs{
		MDB:      kv.NewStore(nil),
		MQ:       mq,
		Fetcher:  fetcher,
		Launcher: fileWritingLauncher(t, strings.Repeat("x", 2048)),
	}
}

func waitStatus(t *testing.T, svc *Service, id string, want internal.Status) internal.Job {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for {
		job, err := svc.GetStatus(context.Background(), id)
		if err != nil {
			t.Fatalf("GetStatus returned error: %v", err)
		}
		if job.Status == want {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected status %s, stuck at %s (%s)", want, job.Status, job.Error)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
