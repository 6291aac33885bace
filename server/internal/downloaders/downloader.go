package downloaders

import (
	"context"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/kv"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/presets"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/process"
)

type Downloader interface {
	// Start runs the job to a terminal state. Outcomes are recorded in the
	// job registry, the returned error is informational only.
	Start(ctx context.Context) error
	// Discard records that the job will never be started.
	Discard(reason string)
	GetId() string
}

// Process is a launched downloader process.
type Process interface {
	kv.Controller
	Lines() <-chan string
	Wait() (int, error)
}

type Launcher interface {
	Launch(name string, args []string, dir string) (Process, error)
}

type LauncherFunc func(name string, args []string, dir string) (Process, error)

func (f LauncherFunc) Launch(name string, args []string, dir string) (Process, error) {
	return f(name, args, dir)
}

// Spawns real processes through the process package.
var DefaultLauncher Launcher = LauncherFunc(func(name string, args []string, dir string) (Process, error) {
	h, err := process.Start(name, args, dir)
	if err != nil {
		return nil, err
	}
	return h, nil
})

// Resolver maps a requested quality to a format selector.
type Resolver interface {
	Resolve(quality string) presets.Preset
}
