//go:build unix

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// yt-dlp spawns ffmpeg and other helpers as children. The parent gets its own
// process group so that every signal reaches the whole tree.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(p *os.Process, sig unix.Signal) error {
	pgid, err := unix.Getpgid(p.Pid)
	if err != nil {
		pgid = p.Pid
	}
	err = unix.Kill(-pgid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func terminate(p *os.Process) error {
	if err := signalGroup(p, unix.SIGTERM); err != nil {
		return err
	}
	// a stopped group only acts on SIGTERM once continued
	return signalGroup(p, unix.SIGCONT)
}

func kill(p *os.Process) error { return signalGroup(p, unix.SIGKILL) }

func suspend(p *os.Process) error { return signalGroup(p, unix.SIGSTOP) }

func resume(p *os.Process) error { return signalGroup(p, unix.SIGCONT) }
