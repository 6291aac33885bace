//go:build unix

package process

import (
	"errors"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
)

func collect(h *Handle) []string {
	var lines []string
	for l := range h.Lines() {
		lines = append(lines, l)
	}
	return lines
}

func TestStartCombinesOutputInOrder(t *testing.T) {
	h, err := Start("sh", []string{"-c", "echo one; echo two 1>&2; echo three; exit 3"}, t.TempDir())
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	lines := collect(h)
	want := []string{"one", "two", "three"}
	if !slices.Equal(lines, want) {
		t.Fatalf("expected %v, got %v", want, lines)
	}

	code, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start("/definitely/not/a/binary", nil, t.TempDir())
	if !errors.Is(err, internal.ErrLaunch) {
		t.Fatalf("expected ErrLaunch, got %v", err)
	}
}

func TestTerminateStopsProcess(t *testing.T) {
	h, err := Start("sh", []string{"-c", "sleep 30"}, t.TempDir())
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	start := time.Now()
	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("terminate took too long: %v", elapsed)
	}

	code, _ := h.Wait()
	if code == 0 {
		t.Fatal("expected non-zero exit code after termination")
	}

	// idempotent
	if err := h.Terminate(); err != nil {
		t.Fatalf("second Terminate returned error: %v", err)
	}
}

func TestTerminateEscalatesToKill(t *testing.T) {
	h, err := Start("sh", []string{"-c", "trap '' TERM; sleep 30"}, t.TempDir())
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	// give the shell time to install the trap
	time.Sleep(100 * time.Millisecond)

	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate returned error: %v", err)
	}

	select {
	case <-h.done:
	default:
		t.Fatal("process still alive after Terminate")
	}
}

func TestPauseResume(t *testing.T) {
	h, err := Start("sh", []string{"-c", "sleep 30"}, t.TempDir())
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer h.Terminate()

	if err := h.Pause(); err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	if err := h.Resume(); err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
}

func TestTerminatePausedProcess(t *testing.T) {
	h, err := Start("sh", []string{"-c", "sleep 30"}, t.TempDir())
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	if err := h.Pause(); err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate returned error: %v", err)
	}
	if _, err := h.Wait(); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
}

func TestPauseExitedProcess(t *testing.T) {
	h, err := Start("true", nil, t.TempDir())
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	collect(h)
	h.Wait()

	if err := h.Pause(); !errors.Is(err, internal.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition pausing an exited process, got %v", err)
	}
	if err := h.Resume(); !errors.Is(err, internal.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition resuming an exited process, got %v", err)
	}
	if got := internal.StatusFor(h.Pause()); got != http.StatusConflict {
		t.Fatalf("expected 409 for an exited process, got %d", got)
	}
}
