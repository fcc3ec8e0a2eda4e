package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/alfredjeanlab/plangraph/internal/audit"
	"github.com/alfredjeanlab/plangraph/internal/config"
	"github.com/alfredjeanlab/plangraph/internal/depgraph"
	"github.com/alfredjeanlab/plangraph/internal/events"
	"github.com/alfredjeanlab/plangraph/internal/existence"
	"github.com/alfredjeanlab/plangraph/internal/hooks"
	"github.com/alfredjeanlab/plangraph/internal/model"
	"github.com/alfredjeanlab/plangraph/internal/presence"
	"github.com/alfredjeanlab/plangraph/internal/server"
	"github.com/alfredjeanlab/plangraph/internal/store"
	"github.com/alfredjeanlab/plangraph/internal/store/postgres"
	"github.com/alfredjeanlab/plangraph/internal/store/sqlite"
	plansync "github.com/alfredjeanlab/plangraph/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the plangraph HTTP and gRPC servers",
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := cfg.NewLogger(os.Stderr)
		slog.SetDefault(logger)

		a, err := newApp(context.Background(), cfg, logger)
		if err != nil {
			return err
		}

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			a.close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := a.grpc.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           a.http,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		logger.Info("plangraph server started",
			"backend", cfg.Backend(),
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Close the event stream first so that open SSE requests return and
		// the HTTP shutdown below does not wait on them.
		a.stream.Close()

		a.grpc.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		a.close()
		logger.Info("shutdown complete")
		return nil
	},
}

// app holds the wired server components.
type app struct {
	store     store.Store
	publisher events.Publisher
	stream    *server.StreamHub
	tracker   *presence.Tracker
	scheduler *plansync.Scheduler
	manager   *depgraph.Manager
	grpc      *grpc.Server
	http      http.Handler
	logger    *slog.Logger
}

// newApp opens the store and event bus and wires the manager, audit sinks,
// transports and snapshot scheduler from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = st

	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			st.Close()
			return nil, err
		}
		a.publisher = pub
		logger.Info("events enabled", "nats_url", cfg.NATSURL)
	} else {
		a.publisher = events.NoopPublisher{}
		logger.Info("events disabled (PLANGRAPH_NATS_URL not set)")
	}

	checker := existence.NewChecker(map[model.EntityKind]existence.Lookup{
		model.EntityProject: store.EntityLookup{Store: st, Kind: model.EntityProject},
		model.EntityTask:    store.EntityLookup{Store: st, Kind: model.EntityTask},
	}, logger)

	a.stream = server.NewStreamHub()
	a.tracker = presence.New()
	a.tracker.StartSweeper(&presence.SweepConfig{})

	sinks := audit.Multi{
		audit.StoreSink{Store: st},
		audit.PublisherSink{Publisher: a.stream},
		a.tracker,
	}
	if cfg.NATSURL != "" {
		sinks = append(sinks, audit.PublisherSink{Publisher: a.publisher})
	}
	if len(cfg.Hooks) > 0 {
		sinks = append(sinks, hooks.NewSink(changeHooks(cfg.Hooks), logger))
		logger.Info("change hooks enabled", "count", len(cfg.Hooks))
	}
	recorder := audit.NewRecorder(sinks, logger)

	a.manager = depgraph.New(st, checker,
		depgraph.WithAudit(recorder),
		depgraph.WithLogger(logger),
	)

	srv := server.NewDependencyServer(a.manager, a.stream, a.tracker)
	a.grpc = server.NewGRPCServer(srv, cfg.AuthToken)
	a.http = srv.NewHTTPHandler(cfg.AuthToken)

	if cfg.SnapshotInterval > 0 {
		if dests := snapshotDestinations(ctx, cfg, logger); len(dests) > 0 {
			a.scheduler = plansync.NewScheduler(st, dests, cfg.SnapshotInterval, logger)
			a.scheduler.Start()
			logger.Info("snapshot scheduler started", "interval", cfg.SnapshotInterval, "destinations", len(dests))
		}
	}
	return a, nil
}

func changeHooks(cfgs []config.Hook) []hooks.Hook {
	out := make([]hooks.Hook, len(cfgs))
	for i, h := range cfgs {
		out[i] = hooks.Hook{
			Command:   h.Command,
			Actions:   h.Actions,
			Timeout:   time.Duration(h.Timeout) * time.Second,
			Dir:       h.Dir,
			OnFailure: h.OnFailure,
		}
	}
	return out
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Backend() == "postgres" {
		return postgres.New(cfg.DatabaseURL, postgres.WithEntityTables(cfg.ProjectsTable, cfg.TasksTable))
	}
	return sqlite.Open(cfg.SQLitePath)
}

// snapshotDestinations builds the configured snapshot targets. A destination
// that fails to initialise is logged and skipped.
func snapshotDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []plansync.Destination {
	var dests []plansync.Destination
	if cfg.SnapshotS3Bucket != "" {
		d, err := plansync.NewS3Destination(ctx, plansync.S3Config{
			Bucket:   cfg.SnapshotS3Bucket,
			Key:      cfg.SnapshotS3Key,
			Region:   cfg.SnapshotS3Region,
			Endpoint: cfg.SnapshotS3Endpoint,
		})
		if err != nil {
			logger.Error("failed to create S3 snapshot destination", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("snapshot destination enabled", "destination", d.Name())
		}
	}
	if cfg.SnapshotGitRepo != "" {
		d := plansync.NewGitDestination(cfg.SnapshotGitRepo, cfg.SnapshotGitFile, cfg.SnapshotGitBranch)
		dests = append(dests, d)
		logger.Info("snapshot destination enabled", "destination", d.Name())
	}
	return dests
}

// close stops background work and releases the bus and the store.
func (a *app) close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.logger.Info("snapshot scheduler stopped")
	}
	a.tracker.Stop()
	if err := a.publisher.Close(); err != nil {
		a.logger.Error("error closing publisher", "err", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing store", "err", err)
	}
}
