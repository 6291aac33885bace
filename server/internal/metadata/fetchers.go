package metadata

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
)

// At most this many renditions are reported by a probe.
const MaxRenditions = 10

// Executor runs a command to completion and returns its standard output.
type Executor interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

type Fetcher struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

type Option func(*Fetcher)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(e Executor) Option {
	return func(f *Fetcher) {
		if e != nil {
			f.exec = e
		}
	}
}

func NewFetcher(binary string, timeout time.Duration, opts ...Option) *Fetcher {
	f := &Fetcher{
		binary:  binary,
		timeout: timeout,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format is a single entry of the downloader's JSON formats list.
type Format struct {
	FormatId       string  `json:"format_id"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Ext            string  `json:"ext"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
	FPS            float64 `json:"fps"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
}

type rawInfo struct {
	Title    string   `json:"title"`
	Duration float64  `json:"duration"`
	Formats  []Format `json:"formats"`
}

// Formats probes url and returns its available renditions, best first.
func (f *Fetcher) Formats(ctx context.Context, url string) (*internal.FormatsResult, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("url is required: %w", internal.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	slog.Info("retrieving formats", slog.String("url", url))

	out, err := f.exec.Output(ctx, f.binary,
		"--no-check-certificate",
		"-J",
		"--flat-playlist",
		"--no-warnings",
		url,
	)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("probing %s took longer than %s: %w", url, f.timeout, internal.ErrTimeout)
	}
	if err != nil {
		slog.Warn("format probe failed", slog.String("url", url), slog.Any("err", err))
		return nil, fmt.Errorf("could not fetch video information: %w: %w", internal.ErrFetchFailure, err)
	}

	var info rawInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("could not decode video information: %w: %w", internal.ErrFetchFailure, err)
	}

	title := info.Title
	if title == "" {
		title = "Video"
	}

	return &internal.FormatsResult{
		Title:    title,
		Duration: info.Duration,
		Formats:  SelectRenditions(info.Formats),
	}, nil
}

// SelectRenditions keeps video formats only, sorted by height descending,
// one per height (first occurrence wins) and at most MaxRenditions.
func SelectRenditions(formats []Format) []internal.Rendition {
	renditions := make([]internal.Rendition, 0, len(formats))

	for _, f := range formats {
		if f.VCodec == "none" || f.Height <= 0 {
			continue
		}
		renditions = append(renditions, toRendition(f))
	}

	slices.SortStableFunc(renditions, func(a, b internal.Rendition) int {
		return cmp.Compare(b.Height, a.Height)
	})

	renditions = slices.CompactFunc(renditions, func(a, b internal.Rendition) bool {
		return a.Height == b.Height
	})

	if len(renditions) > MaxRenditions {
		renditions = renditions[:MaxRenditions]
	}

	return renditions
}

func toRendition(f Format) internal.Rendition {
	size := int64(f.Filesize)
	if size <= 0 {
		size = int64(f.FilesizeApprox)
	}

	sizeStr := "Unknown"
	if size > 0 {
		sizeStr = humanize.IBytes(uint64(size))
	}

	acodec := f.ACodec
	if acodec == "" {
		acodec = "none"
	}

	return internal.Rendition{
		FormatId:    f.FormatId,
		Resolution:  fmt.Sprintf("%dx%d", f.Width, f.Height),
		Width:       f.Width,
		Height:      f.Height,
		Ext:         f.Ext,
		Filesize:    size,
		FilesizeStr: sizeStr,
		FPS:         f.FPS,
		VCodec:      strings.Split(f.VCodec, ".")[0],
		ACodec:      strings.Split(acodec, ".")[0],
	}
}
