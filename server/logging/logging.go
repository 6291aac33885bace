package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/config"
	"github.com/mattn/go-isatty"
)

// New builds the process logger. Output is human readable text when out is a
// terminal and JSON otherwise. When file logging is enabled every record is
// also appended to LogPath; the returned closer releases that file.
func New(cfg config.LoggingConfig, out *os.File) (*slog.Logger, io.Closer, error) {
	var (
		writers = []io.Writer{out}
		closer  io.Closer = nopCloser{}
	)

	if cfg.EnableFileLogging && cfg.LogPath != "" {
		if dir := filepath.Dir(cfg.LogPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("ensure log directory: %w", err)
			}
		}

		fd, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}

		writers = append(writers, fd)
		closer = fd
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: ParseLevel(cfg.Level) <= slog.LevelDebug,
	}

	w := io.MultiWriter(writers...)

	var handler slog.Handler
	if IsTerminal(out) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler), closer, nil
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
