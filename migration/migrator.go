package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // PostgreSQL driver

	"github.com/staple-duck/snh/database"
	apperrors "github.com/staple-duck/snh/errors"
	"github.com/staple-duck/snh/services"
)

// Config holds migration settings
type Config struct {
	DSN    string
	Schema string
	DryRun bool
}

// SeedNode is one row of the initial data set
type SeedNode struct {
	Label  string
	Parent int // index into the seed slice, -1 for a root
}

// DefaultSeed is a root "Parent" with children "First" and "Second"
var DefaultSeed = []SeedNode{
	{Label: "Parent", Parent: -1},
	{Label: "First", Parent: 0},
	{Label: "Second", Parent: 0},
}

// Status summarizes the node table
type Status struct {
	TableExists bool  `json:"tableExists" yaml:"table_exists"`
	Nodes       int64 `json:"nodes" yaml:"nodes"`
	Roots       int64 `json:"roots" yaml:"roots"`
}

// Migrator applies the node schema and initial data through database/sql
type Migrator struct {
	db     *sql.DB
	config *Config
	logger services.Logger
	now    func() time.Time
}

// Open connects with the lib/pq driver, retrying until the database answers
func Open(ctx context.Context, cfg *Config, logger services.Logger) (*Migrator, error) {
	if logger == nil {
		logger = services.NopLogger{}
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, apperrors.NewStorageError(apperrors.ErrCodeDatabaseConnection, "failed to open database", err)
	}

	_, err = apperrors.ExecuteWithResult(ctx, apperrors.ConnectRetryConfig(), func() (struct{}, error) {
		if pingErr := db.PingContext(ctx); pingErr != nil {
			logger.Warn("Database not ready", services.String("error", pingErr.Error()))
			return struct{}{}, apperrors.NewStorageError(apperrors.ErrCodeDatabaseConnection, "database ping failed", pingErr)
		}
		return struct{}{}, nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return NewMigrator(db, cfg, logger), nil
}

// NewMigrator wraps an open connection
func NewMigrator(db *sql.DB, cfg *Config, logger services.Logger) *Migrator {
	if logger == nil {
		logger = services.NopLogger{}
	}
	return &Migrator{
		db:     db,
		config: cfg,
		logger: logger.With(services.String("component", "migration")),
		now:    time.Now,
	}
}

// Close closes the connection
func (m *Migrator) Close() error {
	return m.db.Close()
}

// withTx runs fn in a transaction holding the tree advisory lock, scoped to
// the configured schema when one is set.
func (m *Migrator) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyPqError("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, database.TreeLockKey); err != nil {
		return classifyPqError("acquire tree lock", err)
	}
	if m.config.Schema != "" {
		schema := pq.QuoteIdentifier(m.config.Schema)
		if _, err := tx.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
			return classifyPqError("create schema", err)
		}
		if _, err := tx.ExecContext(ctx, "SET LOCAL search_path TO "+schema); err != nil {
			return classifyPqError("set search_path", err)
		}
	}

	if err := fn(tx); err != nil {
		return err
	}
	if m.config.DryRun {
		m.logger.Info("Dry run, rolling back")
		return nil
	}
	if err := tx.Commit(); err != nil {
		return classifyPqError("commit", err)
	}
	return nil
}

// Migrate creates the node table and its indexes if they are missing
func (m *Migrator) Migrate(ctx context.Context) error {
	m.logger.Info("Applying schema", services.String("schema", m.config.Schema))
	return m.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, database.Schema); err != nil {
			return classifyPqError("apply schema", err)
		}
		return nil
	})
}

// Seed inserts seed when the table is empty and reports how many rows it
// committed. A non-empty table is left untouched and a dry run reports zero.
func (m *Migrator) Seed(ctx context.Context, seed []SeedNode) (int, error) {
	if err := validateSeed(seed); err != nil {
		return 0, err
	}

	inserted := 0
	err := m.withTx(ctx, func(tx *sql.Tx) error {
		var count int64
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM tree_nodes`).Scan(&count); err != nil {
			return classifyPqError("count nodes", err)
		}
		if count > 0 {
			m.logger.Info("Database already contains data, skipping seed", services.Int("nodes", int(count)))
			return nil
		}

		ids := make([]string, len(seed))
		base := m.now().UTC()
		for i, node := range seed {
			ids[i] = uuid.NewString()
			var parent interface{}
			if node.Parent >= 0 {
				parent = ids[node.Parent]
			}
			ts := base.Add(time.Duration(i) * time.Microsecond)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tree_nodes (id, label, parent_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`,
				ids[i], node.Label, parent, ts); err != nil {
				return classifyPqError("insert seed node", err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if inserted == 0 {
		return 0, nil
	}
	if m.config.DryRun {
		m.logger.Info("Seed rolled back (dry run)", services.Int("nodes", inserted))
		return 0, nil
	}
	m.logger.Info("Seed applied", services.Int("nodes", inserted))
	return inserted, nil
}

// integrityChecks are queries that must each return zero
var integrityChecks = []struct {
	name  string
	query string
}{
	{
		name: "self_parent",
		query: `SELECT count(*) FROM tree_nodes WHERE parent_id = id`,
	},
	{
		name: "orphans",
		query: `SELECT count(*) FROM tree_nodes c
			LEFT JOIN tree_nodes p ON p.id = c.parent_id
			WHERE c.parent_id IS NOT NULL AND p.id IS NULL`,
	},
	{
		// nodes that never reach a root
		name: "cycles",
		query: `WITH RECURSIVE rooted AS (
				SELECT id FROM tree_nodes WHERE parent_id IS NULL
				UNION
				SELECT c.id FROM tree_nodes c JOIN rooted r ON c.parent_id = r.id
			)
			SELECT count(*) FROM tree_nodes WHERE id NOT IN (SELECT id FROM rooted)`,
	},
}

// Verify checks that the stored rows form a forest
func (m *Migrator) Verify(ctx context.Context) error {
	var failures []string
	for _, check := range integrityChecks {
		var count int64
		if err := m.db.QueryRowContext(ctx, m.qualify(check.query)).Scan(&count); err != nil {
			return classifyPqError("integrity check "+check.name, err)
		}
		if count != 0 {
			failures = append(failures, fmt.Sprintf("%s=%d", check.name, count))
			continue
		}
		m.logger.Debug("Integrity check passed", services.String("check", check.name))
	}
	if len(failures) > 0 {
		return apperrors.NewInternalError(apperrors.ErrCodeProcessingError,
			fmt.Sprintf("integrity checks failed: %v", failures), nil)
	}
	return nil
}

// Status reports whether the table exists and how many nodes and roots it holds
func (m *Migrator) Status(ctx context.Context) (*Status, error) {
	status := &Status{}

	var regclass sql.NullString
	if err := m.db.QueryRowContext(ctx, `SELECT to_regclass($1)::text`, m.qualify("tree_nodes")).Scan(&regclass); err != nil {
		return nil, classifyPqError("look up table", err)
	}
	status.TableExists = regclass.Valid
	if !status.TableExists {
		return status, nil
	}

	err := m.db.QueryRowContext(ctx, m.qualify(
		`SELECT count(*), count(*) FILTER (WHERE parent_id IS NULL) FROM tree_nodes`,
	)).Scan(&status.Nodes, &status.Roots)
	if err != nil {
		return nil, classifyPqError("count nodes", err)
	}
	return status, nil
}

// qualify points tree_nodes references at the configured schema
func (m *Migrator) qualify(query string) string {
	if m.config.Schema == "" {
		return query
	}
	return strings.ReplaceAll(query, "tree_nodes", pq.QuoteIdentifier(m.config.Schema)+".tree_nodes")
}

func validateSeed(seed []SeedNode) error {
	for i, node := range seed {
		if node.Label == "" {
			return apperrors.NewValidationError(apperrors.ErrCodeInvalidInput,
				fmt.Sprintf("seed node %d has an empty label", i), nil)
		}
		if node.Parent >= i {
			return apperrors.NewValidationError(apperrors.ErrCodeInvalidInput,
				fmt.Sprintf("seed node %d must reference an earlier node", i), nil)
		}
	}
	return nil
}

func classifyPqError(operation string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return apperrors.NewStorageError(apperrors.ErrCodeDatabaseQuery,
			fmt.Sprintf("%s failed (%s): %s", operation, pqErr.Code, pqErr.Message), err)
	}
	return apperrors.NewStorageError(apperrors.ErrCodeDatabaseQuery, operation+" failed", err)
}
