//go:build !unix

package process

import (
	"errors"
	"os"
	"os/exec"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
)

func setProcAttr(cmd *exec.Cmd) {}

// There is no graceful termination signal to send, the grace window in
// Terminate simply precedes the kill.
func terminate(p *os.Process) error { return nil }

func kill(p *os.Process) error {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func suspend(p *os.Process) error { return internal.ErrUnsupported }

func resume(p *os.Process) error { return internal.ErrUnsupported }
