package process

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
)

// Time given to a process to exit after a graceful termination request
// before it gets killed.
const TerminateGrace = 500 * time.Millisecond

// ErrExited is returned when signalling a process that is already gone. The
// job it belongs to is about to leave the running state.
var ErrExited = fmt.Errorf("process already exited: %w", internal.ErrInvalidTransition)

// Handle controls a single spawned process.
type Handle struct {
	cmd   *exec.Cmd
	lines chan string
	done  chan struct{}

	exitCode int
	waitErr  error

	mu         sync.Mutex
	terminated bool
}

// Start spawns name with args inside dir. Standard output and standard error
// share the same pipe so lines are delivered in emission order.
func Start(name string, args []string, dir string) (*Handle, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdin = nil
	setProcAttr(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internal.ErrLaunch, err)
	}

	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("%w: %w", internal.ErrLaunch, err)
	}

	// the child owns its copy of the write end now
	pw.Close()

	h := &Handle{
		cmd:   cmd,
		lines: make(chan string, 64),
		done:  make(chan struct{}),
	}

	go h.produceLines(pr)
	go h.wait()

	return h, nil
}

func (h *Handle) produceLines(pr *os.File) {
	defer close(h.lines)
	defer pr.Close()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		h.lines <- scanner.Text()
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		slog.Warn("process output truncated",
			slog.Int("pid", h.Pid()),
			slog.Any("err", err),
		)
	}
}

func (h *Handle) wait() {
	defer close(h.done)

	err := h.cmd.Wait()
	h.exitCode = h.cmd.ProcessState.ExitCode()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		h.waitErr = err
	}
}

// Lines streams the combined process output. The channel is closed once the
// process closes its output; it cannot be consumed twice.
func (h *Handle) Lines() <-chan string { return h.lines }

// Wait blocks until the process exits and returns its exit code. A process
// killed by a signal reports -1.
func (h *Handle) Wait() (int, error) {
	<-h.done
	return h.exitCode, h.waitErr
}

func (h *Handle) Pid() int { return h.cmd.Process.Pid }

func (h *Handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Terminate asks the process to stop and kills it if it is still alive after
// TerminateGrace. Terminating an exited process is a no-op.
func (h *Handle) Terminate() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.exited() {
		return nil
	}

	if !h.terminated {
		h.terminated = true
		if err := terminate(h.cmd.Process); err != nil && !h.exited() {
			slog.Warn("graceful termination failed",
				slog.Int("pid", h.Pid()),
				slog.Any("err", err),
			)
		}
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(TerminateGrace):
	}

	if err := kill(h.cmd.Process); err != nil && !h.exited() {
		return err
	}

	<-h.done
	return nil
}

// Pause suspends the process group. Unsupported platforms return
// internal.ErrUnsupported.
func (h *Handle) Pause() error {
	if h.exited() {
		return ErrExited
	}
	return suspend(h.cmd.Process)
}

// Resume continues a suspended process group.
func (h *Handle) Resume() error {
	if h.exited() {
		return ErrExited
	}
	return resume(h.cmd.Process)
}
