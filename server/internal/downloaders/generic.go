package downloaders

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/config"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/kv"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/locator"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/presets"
)

type GenericDownloader struct {
	// Directory the file is written to, defaults to paths.download_path.
	OutputDir string

	launcher Launcher
	resolver Resolver

	// embedded
	DownloaderBase
}

type Option func(*GenericDownloader)

func WithLauncher(l Launcher) Option {
	return func(g *GenericDownloader) {
		if l != nil {
			g.launcher = l
		}
	}
}

func WithResolver(r Resolver) Option {
	return func(g *GenericDownloader) {
		if r != nil {
			g.resolver = r
		}
	}
}

func WithOutputDir(dir string) Option {
	return func(g *GenericDownloader) { g.OutputDir = dir }
}

// NewGenericDownload binds the fetch workflow to a job already present in
// store.
func NewGenericDownload(store *kv.Store, id string, opts ...Option) *GenericDownloader {
	g := &GenericDownloader{
		OutputDir: config.Instance().Paths.DownloadPath,
		launcher:  DefaultLauncher,
	}
	// in base
	g.Id = id
	g.store = store

	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GenericDownloader) Start(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("download workflow panicked",
				slog.String("id", g.ShortId()),
				slog.Any("panic", r),
			)
			g.fail(fmt.Sprintf("Error: %v", r))
			err = fmt.Errorf("download %s panicked: %v", g.Id, r)
		}
	}()

	job, err := g.job()
	if err != nil {
		return err
	}
	if job.Status != internal.StatusQueued {
		slog.Info("skipping download", slog.String("id", g.ShortId()), slog.String("status", string(job.Status)))
		return nil
	}
	if err := ctx.Err(); err != nil {
		g.fail(fmt.Sprintf("Error: %v", err))
		return err
	}

	if err := os.MkdirAll(g.OutputDir, os.ModePerm); err != nil {
		g.fail(fmt.Sprintf("Error: %v", err))
		return err
	}

	stem, ext := splitFilename(job.Filename)
	if stem == "" {
		stem, ext = DefaultFilename, DefaultExtension
	}
	if config.Instance().Downloader.UniqueNames {
		stem += "-" + g.ShortId()
	}

	params := g.buildParams(job, stem, ext)

	slog.Info("requesting download",
		slog.String("id", g.ShortId()),
		slog.String("url", job.URL),
		slog.Any("params", params),
	)

	proc, err := g.launcher.Launch(config.Instance().Paths.DownloaderPath, params, g.OutputDir)
	if err != nil {
		g.fail(fmt.Sprintf("Error: %v", err))
		return err
	}

	if err := g.store.MarkRunning(g.Id, proc); err != nil {
		// cancelled while launching, the process is ours to stop
		slog.Info("download cancelled before start", slog.String("id", g.ShortId()))
		if err := proc.Terminate(); err != nil {
			slog.Warn("failed terminating orphan process", slog.String("id", g.ShortId()), slog.Any("err", err))
		}
		for range proc.Lines() {
		}
		proc.Wait()
		return nil
	}

	lastError := consumeLogs(g.store, g.Id, proc.Lines())

	code, waitErr := proc.Wait()
	if waitErr != nil || code != 0 {
		detail := "Download failed"
		if lastError != "" {
			detail = lastError
		}
		g.fail("Failed: " + detail)
		return fmt.Errorf("download %s exited with code %d: %s", g.Id, code, detail)
	}

	path, err := locator.Locate(g.OutputDir, stem, lookupOrder(ext))
	if err != nil {
		slog.Error("output file not found", slog.String("id", g.ShortId()), slog.Any("err", err))
		g.fail("File not found after download")
		return err
	}

	return g.complete(path)
}

func (g *GenericDownloader) complete(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		g.fail("File not found after download")
		return err
	}

	size := info.Size()
	_, ext := splitFilename(path)

	res := kv.Result{
		File:      path,
		SizeBytes: size,
		Size:      humanize.IBytes(uint64(size)),
		Format:    strings.ToUpper(ext),
	}

	if err := g.store.Complete(g.Id, res); err != nil {
		slog.Info("completion not recorded", slog.String("id", g.ShortId()), slog.Any("err", err))
		return nil
	}

	slog.Info("download completed",
		slog.String("id", g.ShortId()),
		slog.String("file", filepath.Base(path)),
		slog.String("size", res.Size),
	)
	return nil
}

func (g *GenericDownloader) resolve(quality string) presets.Preset {
	if g.resolver != nil {
		return g.resolver.Resolve(quality)
	}
	return presets.Verbatim(quality)
}

func (g *GenericDownloader) buildParams(job internal.Job, stem, ext string) []string {
	cfg := config.Instance().Downloader
	preset := g.resolve(job.Quality)

	merge := cfg.MergeOutputFormat
	if ext != DefaultExtension || merge == "" {
		merge = ext
	}

	params := []string{
		"--no-check-certificate",
		"--newline",
		"-f", preset.Format,
		"-o", outputTemplate(g.OutputDir, stem),
		"--merge-output-format", merge,
	}

	params = appendFlag(params, "--concurrent-fragments", positive(cfg.ConcurrentFragments))
	params = appendFlag(params, "--buffer-size", cfg.BufferSize)
	params = appendFlag(params, "--http-chunk-size", cfg.HTTPChunkSize)
	params = appendFlag(params, "--retries", positive(cfg.Retries))
	params = appendFlag(params, "--fragment-retries", positive(cfg.FragmentRetries))
	params = append(params, "--no-part", "--no-mtime")

	params = append(params, preset.Params...)
	params = append(params, cfg.ExtraParams...)
	params = argsSanitizer(params)

	return append(params, job.URL)
}

// outputTemplate escapes the literal stem for the downloader's template
// syntax, where % starts a field.
func outputTemplate(dir, stem string) string {
	return filepath.Join(dir, strings.ReplaceAll(stem, "%", "%%")) + ".%(ext)s"
}

// appendFlag skips flags without a value.
func appendFlag(params []string, flag, value string) []string {
	if value == "" {
		return params
	}
	return append(params, flag, value)
}

func positive(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
