// a stupid package name...
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/rpc"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gofrs/flock"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/config"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/kv"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/metadata"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/presets"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/queue"
	middlewares "github.com/marcopiovanello/yt-dlp-fetcher/server/middleware"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/rest"
	ytdlpRPC "github.com/marcopiovanello/yt-dlp-fetcher/server/rpc"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/status"
	"golang.org/x/sync/errgroup"

	bolt "go.etcd.io/bbolt"
)

const (
	lockName     = ".yt-dlp-fetcher.lock"
	databaseName = "presets.db"

	shutdownTimeout = 10 * time.Second
)

var ErrLocked = errors.New("download directory is used by another instance")

type serverConfig struct {
	mdb     *kv.Store
	presets *presets.Store
	rpc     *rpc.Server
	hub     *ytdlpRPC.Hub
	handler *rest.Handler
}

// AcquireLock takes an exclusive lock on dir so two instances never write to
// the same download directory.
func AcquireLock(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(dir, lockName))

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", dir, ErrLocked)
	}

	return lock, nil
}

func Run(ctx context.Context) error {
	conf := config.Instance()

	lock, err := AcquireLock(conf.Paths.DownloadPath)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if err := os.MkdirAll(conf.Paths.LocalDatabasePath, os.ModePerm); err != nil {
		return err
	}

	boltdb, err := bolt.Open(
		filepath.Join(conf.Paths.LocalDatabasePath, databaseName),
		0600,
		&bolt.Options{Timeout: time.Second},
	)
	if err != nil {
		return err
	}
	defer boltdb.Close()

	ps, err := presets.NewStore(boltdb)
	if err != nil {
		return err
	}

	bus := EventBus.New()
	mdb := kv.NewStore(bus)

	mq, err := queue.NewMessageQueue(conf.Server.QueueSize)
	if err != nil {
		return err
	}

	args := &rest.ContainerArgs{
		MDB:     mdb,
		MQ:      mq,
		Presets: ps,
		Fetcher: metadata.NewFetcher(conf.Paths.DownloaderPath, conf.Downloader.ProbeTimeout),
	}
	svc, handler := rest.Container(args)

	rpcServer, err := ytdlpRPC.Container(svc)
	if err != nil {
		return err
	}

	hub, err := ytdlpRPC.NewHub(bus)
	if err != nil {
		return err
	}
	defer hub.Close()

	srv := newServer(serverConfig{
		mdb:     mdb,
		presets: ps,
		rpc:     rpcServer,
		hub:     hub,
		handler: handler,
	})

	var (
		network = "tcp"
		address = fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port)
	)

	// support unix sockets
	if strings.HasPrefix(conf.Server.Host, "/") {
		network = "unix"
		address = conf.Server.Host
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		slog.Error("failed to listen", slog.String("err", err.Error()))
		return err
	}

	slog.Info("yt-dlp-fetcher started",
		slog.String("address", address),
		slog.Int("queue_size", conf.Server.QueueSize),
		slog.String("download_path", conf.Paths.DownloadPath),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return gracefulShutdown(srv, svc)
	})

	return g.Wait()
}

func newServer(c serverConfig) *http.Server {
	r := chi.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r.Use(corsMiddleware.Handler)
	r.Use(middlewares.RequestLogger)

	baseUrl := config.Instance().Server.BaseURL

	// RPC handlers
	r.Route(baseUrl+"/rpc", ytdlpRPC.ApplyRouter(c.rpc, c.hub))

	// REST API handlers
	r.Route(baseUrl+"/api/v1", func(r chi.Router) {
		rest.ApplyRouter(c.handler)(r)
		r.Route("/presets", presets.NewRestHandler(c.presets).ApplyRouter())
	})

	// Status
	r.Route(baseUrl+"/status", status.ApplyRouter(c.mdb))

	return &http.Server{Handler: r}
}

func gracefulShutdown(srv *http.Server, svc *rest.Service) error {
	slog.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	svc.Shutdown()

	return err
}
