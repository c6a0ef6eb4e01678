package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/staple-duck/snh/config"
	"github.com/staple-duck/snh/database"
	apperrors "github.com/staple-duck/snh/errors"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

const badgerGCDiscardRatio = 0.5

// ServiceContainer holds all service instances
type ServiceContainer struct {
	Hierarchy HierarchyService
	Store     database.NodeStore

	// PostgresService is nil unless the postgres driver is selected
	PostgresService *database.PostgresService

	Logger        Logger
	Metrics       MetricsService
	Registry      *prometheus.Registry
	HealthService HealthService

	stopBackground func()
}

// ServiceFactory creates and configures all services
type ServiceFactory struct {
	config    *config.Config
	logOutput io.Writer
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(cfg *config.Config) *ServiceFactory {
	return &ServiceFactory{
		config: cfg,
	}
}

// WithLogOutput redirects the container's logger, which defaults to stdout
func (f *ServiceFactory) WithLogOutput(w io.Writer) *ServiceFactory {
	f.logOutput = w
	return f
}

// CreateServices opens the configured store and wires the services on top
func (f *ServiceFactory) CreateServices(ctx context.Context) (*ServiceContainer, error) {
	logger := NewLoggerFromConfig(&LoggerConfig{
		Level:  ParseLogLevel(f.config.Logging.Level),
		Format: f.config.Logging.Format,
		Output: f.logOutput,
	})

	container := &ServiceContainer{Logger: logger}

	store, err := f.openStore(ctx, container)
	if err != nil {
		return nil, err
	}
	container.Store = store

	var metrics MetricsService = NoOpMetrics{}
	if f.config.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = NewPrometheusMetrics(registry)
		container.Registry = registry
	}
	container.Metrics = metrics

	container.Hierarchy = NewTreeService(store, logger, metrics)

	healthService := NewHealthService(Version, logger)
	healthService.RegisterChecker(NewStoreHealthChecker(f.config.Store.Driver, store))
	container.HealthService = healthService

	logger.Info("Services initialized",
		String("store_driver", f.config.Store.Driver),
		Bool("metrics_enabled", f.config.Metrics.Enabled))

	return container, nil
}

func (f *ServiceFactory) openStore(ctx context.Context, container *ServiceContainer) (database.NodeStore, error) {
	switch f.config.Store.Driver {
	case config.DriverMemory:
		return database.NewMemoryStore(), nil

	case config.DriverBadger:
		badgerCfg := f.config.Store.Badger
		store, err := database.OpenBadgerStore(database.BadgerOptions{
			Path:       badgerCfg.Path,
			InMemory:   badgerCfg.InMemory,
			SyncWrites: badgerCfg.SyncWrites,
			Logger:     NewBadgerLogger(container.Logger),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		if badgerCfg.GCInterval > 0 && !badgerCfg.InMemory {
			container.stopBackground = startBadgerGC(store, badgerCfg.GCInterval, container.Logger)
		}
		return store, nil

	case config.DriverPostgres:
		db, err := ConnectPostgres(ctx, f.config, container.Logger)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		container.PostgresService = db
		return database.NewPostgresNodeStore(db), nil

	default:
		return nil, apperrors.NewValidationError(apperrors.ErrCodeConfigurationError,
			fmt.Sprintf("unknown store driver %q", f.config.Store.Driver), nil)
	}
}

// PostgresConfigFrom maps application config onto pool settings
func PostgresConfigFrom(cfg *config.Config) *database.PostgresConfig {
	pgConfig := database.DefaultPostgresConfig()
	pgConfig.URL = cfg.Database.URL
	pgConfig.Host = cfg.Database.Host
	pgConfig.Port = cfg.Database.Port
	pgConfig.Database = cfg.Database.Database
	pgConfig.User = cfg.Database.User
	pgConfig.Password = cfg.Database.Password
	pgConfig.SSLMode = cfg.Database.SSLMode
	pgConfig.MaxConns = int32(cfg.Database.MaxConns)
	pgConfig.MinConns = int32(cfg.Database.MinConns)
	return pgConfig
}

// ConnectPostgres opens the pool, retrying while the database comes up
func ConnectPostgres(ctx context.Context, cfg *config.Config, logger Logger) (*database.PostgresService, error) {
	pgConfig := PostgresConfigFrom(cfg)
	attempt := 0
	return apperrors.ExecuteWithResult(ctx, apperrors.ConnectRetryConfig(), func() (*database.PostgresService, error) {
		attempt++
		db, err := database.NewPostgresService(ctx, pgConfig)
		if err != nil {
			logger.Warn("Database connection attempt failed",
				Int("attempt", attempt),
				String("reason", err.Error()))
		}
		return db, err
	})
}

// Close stops background work and releases the store
func (c *ServiceContainer) Close() error {
	if c.stopBackground != nil {
		c.stopBackground()
		c.stopBackground = nil
	}
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

// startBadgerGC reclaims value log space on a fixed interval until the
// returned stop function is called.
func startBadgerGC(store *database.BadgerStore, interval time.Duration, logger Logger) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := store.RunGC(badgerGCDiscardRatio); err != nil {
					logger.Warn("Badger value log GC failed", String("error", err.Error()))
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

// HealthCheck verifies the store is reachable
func (c *ServiceContainer) HealthCheck(ctx context.Context) error {
	if err := c.Store.Ping(ctx); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}
