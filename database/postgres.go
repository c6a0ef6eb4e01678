package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/staple-duck/snh/errors"
)

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	// URL is a postgres:// connection string. When set it wins over the
	// individual fields below.
	URL      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// Connection pool settings
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
	HealthCheck time.Duration
}

// DefaultPostgresConfig returns sensible defaults
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:        "localhost",
		Port:        5432,
		Database:    "postgres",
		User:        "postgres",
		SSLMode:     "prefer",
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: 30 * time.Minute,
		HealthCheck: time.Minute,
	}
}

// BuildConnectionString builds PostgreSQL connection string
func (c *PostgresConfig) BuildConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s search_path=public",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode,
	)
}

// PostgresService owns the pgx connection pool
type PostgresService struct {
	pool *pgxpool.Pool
	cfg  *PostgresConfig
}

// NewPostgresService creates a new PostgreSQL service with connection pooling
func NewPostgresService(ctx context.Context, cfg *PostgresConfig) (*PostgresService, error) {
	if cfg == nil {
		cfg = DefaultPostgresConfig()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.BuildConnectionString())
	if err != nil {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeConfigurationError,
			"failed to parse connection string", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLife > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLife
	}
	if cfg.MaxConnIdle > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdle
	}
	if cfg.HealthCheck > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheck
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET search_path TO public")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperrors.NewStorageError(apperrors.ErrCodeDatabaseConnection,
			"failed to create connection pool", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, apperrors.NewStorageError(apperrors.ErrCodeDatabaseConnection,
			"failed to ping database", err)
	}

	return &PostgresService{
		pool: pool,
		cfg:  cfg,
	}, nil
}

// Close closes the connection pool
func (s *PostgresService) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Pool returns the underlying connection pool
func (s *PostgresService) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping checks database connectivity
func (s *PostgresService) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Begin starts a new transaction
func (s *PostgresService) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

// Exec executes a query without returning rows
func (s *PostgresService) Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error) {
	return s.pool.Exec(ctx, query, args...)
}

// Stats returns connection pool statistics
func (s *PostgresService) Stats() *pgxpool.Stat {
	return s.pool.Stat()
}

// EnsureSchema creates the node table and its indexes if missing
func (s *PostgresService) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return apperrors.NewStorageError(apperrors.ErrCodeDatabaseQuery, "failed to apply schema", err)
	}
	return nil
}

// Health checks database health
func (s *PostgresService) Health(ctx context.Context) error {
	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	stats := s.Stats()
	if stats.AcquireCount() == 0 && stats.TotalConns() == 0 {
		return fmt.Errorf("no active connections")
	}

	var result int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	return nil
}
