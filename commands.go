package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/config"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/downloaders"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/kv"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/metadata"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/presets"
	"github.com/spf13/cobra"

	bolt "go.etcd.io/bbolt"
)

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Instance().Dump(cmd.OutOrStdout())
		},
	}
}

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats <url>",
		Short: "List the renditions available for a url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Instance()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			f := metadata.NewFetcher(cfg.Paths.DownloaderPath, cfg.Downloader.ProbeTimeout)

			res, err := f.Formats(ctx, args[0])
			if err != nil {
				return err
			}

			printFormats(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func printFormats(w io.Writer, res *internal.FormatsResult) {
	fmt.Fprintf(w, "%s (%s)\n", res.Title, time.Duration(res.Duration*float64(time.Second)).Round(time.Second))

	if len(res.Formats) == 0 {
		fmt.Fprintln(w, "No video renditions available")
		return
	}

	rows := make([][]string, 0, len(res.Formats))
	for _, r := range res.Formats {
		rows = append(rows, []string{
			r.FormatId,
			r.Resolution,
			r.Ext,
			strconv.FormatFloat(r.FPS, 'f', -1, 64),
			r.VCodec,
			r.ACodec,
			r.FilesizeStr,
		})
	}

	fmt.Fprintln(w, renderTable(
		[]string{"ID", "Resolution", "Ext", "FPS", "Video", "Audio", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
	))
}

func newFetchCommand() *cobra.Command {
	var (
		output  string
		quality string
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a single url in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Instance()

			dir := cfg.Paths.DownloadPath
			if d := filepath.Dir(output); output != "" && d != "." {
				dir = d
			}

			var name string
			if output != "" {
				name = filepath.Base(output)
			}

			filename, err := downloaders.NormalizeFilename(name)
			if err != nil {
				return err
			}

			if strings.TrimSpace(quality) == "" {
				quality = presets.DefaultQuality
			}

			bus := EventBus.New()
			mdb := kv.NewStore(bus)

			out := cmd.OutOrStdout()
			bus.Subscribe(kv.TopicJobUpdate, func(job internal.Job) {
				fmt.Fprintf(out, "[%s] %5.1f%% %s\n", job.Status, job.Percent, job.Progress)
			})

			job := mdb.Create(internal.DownloadRequest{URL: args[0], Filename: filename, Quality: quality})

			opts := []downloaders.Option{downloaders.WithOutputDir(dir)}
			if ps, closeStore := openPresets(cfg); ps != nil {
				defer closeStore()
				opts = append(opts, downloaders.WithResolver(ps))
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			// Ctrl-C cancels the job
			go func() {
				<-ctx.Done()
				mdb.Cancel(job.Id)
			}()

			downloaders.NewGenericDownload(mdb, job.Id, opts...).Start(ctx)

			final, err := mdb.Get(job.Id)
			if err != nil {
				return err
			}

			switch final.Status {
			case internal.StatusCompleted:
				fmt.Fprintln(out, final.File)
				return nil
			case internal.StatusCancelled:
				return errors.New("download cancelled")
			default:
				return fmt.Errorf("download failed: %s", final.Error)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, defaults to video.mp4 in the download path")
	cmd.Flags().StringVarP(&quality, "quality", "q", presets.DefaultQuality, "Preset name or format selector")

	return cmd
}

// openPresets opens the preset database. A running server holds its lock, in
// that case qualities are used verbatim.
func openPresets(cfg *config.Config) (*presets.Store, func()) {
	path := filepath.Join(cfg.Paths.LocalDatabasePath, "presets.db")

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 500 * time.Millisecond})
	if err != nil {
		slog.Debug("presets unavailable", slog.String("path", path), slog.Any("err", err))
		return nil, nil
	}

	ps, err := presets.NewStore(db)
	if err != nil {
		db.Close()
		slog.Debug("presets unavailable", slog.String("path", path), slog.Any("err", err))
		return nil, nil
	}

	return ps, func() { db.Close() }
}
