// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the scan engine and its backends.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/stringfinder/internal/api"
	"github.com/JakeFAU/stringfinder/internal/clock/system"
	"github.com/JakeFAU/stringfinder/internal/config"
	collyfetcher "github.com/JakeFAU/stringfinder/internal/fetcher/colly"
	"github.com/JakeFAU/stringfinder/internal/fetcher/ratelimit"
	"github.com/JakeFAU/stringfinder/internal/id/uuid"
	memorypublisher "github.com/JakeFAU/stringfinder/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/stringfinder/internal/publisher/pubsub"
	"github.com/JakeFAU/stringfinder/internal/results"
	"github.com/JakeFAU/stringfinder/internal/scan"
	"github.com/JakeFAU/stringfinder/internal/storage/gcs"
	"github.com/JakeFAU/stringfinder/internal/storage/local"
	memorystorage "github.com/JakeFAU/stringfinder/internal/storage/memory"
	"github.com/JakeFAU/stringfinder/internal/storage/postgres"
	"github.com/JakeFAU/stringfinder/internal/telemetry"
)

// readinessProbeID is looked up by Ready; it never names a real job.
const readinessProbeID = "__readyz__"

// App holds the shared, long-lived services built from one Config.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	engine  *scan.Engine
	store   scan.JobStore
	files   http.Handler
	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Option customizes New.
type Option func(*options)

type options struct {
	fetcher scan.Fetcher
}

// WithFetcher replaces the colly fetcher, mainly for tests.
func WithFetcher(f scan.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// New creates and initializes the App. It fails fast if any configured
// backend cannot be initialized and releases whatever it already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx, o); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("application services initialized",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("postgres", cfg.DB.DSN != ""),
		zap.String("topic", cfg.PubSub.TopicName),
	)
	return a, nil
}

func (a *App) init(ctx context.Context, o options) error {
	exporter, err := telemetry.NewExporter(a.cfg.Telemetry.Exporter, os.Stderr)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: a.cfg.Telemetry.ServiceName,
		Exporter:    exporter,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.addCloser("tracing", func() error {
		return tp.Shutdown(context.WithoutCancel(ctx))
	})

	store, err := a.buildJobStore(ctx)
	if err != nil {
		return err
	}
	a.store = store

	blobs, err := a.buildBlobStore(ctx)
	if err != nil {
		return err
	}

	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		return err
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:          a.cfg.HTTP.UserAgent,
			ConnectTimeout:     a.cfg.ConnectTimeout(),
			Timeout:            a.cfg.FetchTimeout(),
			InsecureSkipVerify: a.cfg.HTTP.InsecureSkipVerify,
			MaxBodyBytes:       a.cfg.HTTP.MaxBodyBytes,
		}, a.logger.Named("fetcher"))
	}
	fetcher = ratelimit.Wrap(fetcher, ratelimit.Config{
		PerHostRPS: a.cfg.HTTP.PerHostRPS,
		Burst:      a.cfg.HTTP.PerHostBurst,
	})

	clock := system.New()
	a.engine = scan.NewEngine(
		store,
		scan.NewBatchRunner(fetcher, a.logger.Named("batch")),
		results.NewCSVSink(blobs, clock, a.cfg.Scan.ResultsPrefix, a.logger.Named("results")),
		publisher,
		clock,
		uuid.New(),
		scan.EngineConfig{
			DefaultBatchSize: a.cfg.Scan.DefaultBatchSize,
			MaxBatchSize:     a.cfg.Scan.MaxBatchSize,
			Topic:            a.cfg.PubSub.TopicName,
		},
		a.logger.Named("engine"),
	)
	return nil
}

func (a *App) buildJobStore(ctx context.Context) (scan.JobStore, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Info("using in-memory job store")
		return memorystorage.NewJobStore(), nil
	}
	store, err := postgres.NewJobStore(ctx, postgres.JobStoreConfig{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init postgres job store: %w", err)
	}
	a.addCloser("postgres", func() error {
		store.Close()
		return nil
	})
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (a *App) buildBlobStore(ctx context.Context) (scan.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendLocal:
		blobs, err := local.New(local.Config{
			BaseDir:       a.cfg.Storage.BaseDir,
			PublicBaseURL: a.cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		a.files = blobs.Handler()
		return blobs, nil
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.addCloser("gcs", client.Close)
		blobs, err := gcs.New(client, gcs.Config{
			Bucket:        a.cfg.Storage.GCSBucket,
			PublicBaseURL: a.cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		return blobs, nil
	case config.BackendMemory:
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

func (a *App) buildPublisher(ctx context.Context) (scan.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	if a.cfg.PubSub.ProjectID == "" {
		pub := memorypublisher.New()
		a.addCloser("publisher", pub.Close)
		return pub, nil
	}
	pub, err := pubsubpublisher.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.addCloser("pubsub", pub.Close)
	return pub, nil
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Engine returns the scan engine.
func (a *App) Engine() *scan.Engine {
	return a.engine
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Files serves stored result files; nil unless the local backend is used.
func (a *App) Files() http.Handler {
	return a.files
}

// Ready checks that the job store answers lookups.
func (a *App) Ready(ctx context.Context) error {
	if _, err := a.store.Get(ctx, readinessProbeID); err != nil && !errors.Is(err, scan.ErrJobNotFound) {
		return fmt.Errorf("job store: %w", err)
	}
	return nil
}

// Server builds the HTTP API on top of the engine.
func (a *App) Server() *api.Server {
	opts := []api.Option{api.WithReadiness(a.Ready)}
	if a.files != nil {
		opts = append(opts, api.WithFiles(a.files))
	}
	return api.NewServer(a.engine, a.cfg, a.logger.Named("api"), opts...)
}

// Close releases backends in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("close failed", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}
