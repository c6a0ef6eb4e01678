package database

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	apperrors "github.com/staple-duck/snh/errors"
	"github.com/staple-duck/snh/models"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

const nodeColumns = `id::text, label, parent_id::text, created_at, updated_at`

// PostgresNodeRepository provides database operations for nodes
type PostgresNodeRepository struct {
	q   querier
	now func() time.Time
}

// NewPostgresNodeRepository creates a repository on top of a pool or transaction
func NewPostgresNodeRepository(q querier) *PostgresNodeRepository {
	return &PostgresNodeRepository{q: q, now: time.Now}
}

// parseID converts a textual id into a uuid parameter. ok is false for
// anything that is not a UUID; such ids cannot exist in the table.
func parseID(id string) (pgtype.UUID, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, false
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, true
}

func parentParam(parentID *string) (pgtype.UUID, error) {
	if parentID == nil {
		return pgtype.UUID{}, nil
	}
	param, ok := parseID(*parentID)
	if !ok {
		return pgtype.UUID{}, apperrors.NewParentNotFoundError(apperrors.ErrCodeParentNotFound,
			"Parent node not found", nil)
	}
	return param, nil
}

func scanNode(row pgx.Row) (*models.Node, error) {
	var node models.Node
	if err := row.Scan(&node.ID, &node.Label, &node.ParentID, &node.CreatedAt, &node.UpdatedAt); err != nil {
		return nil, err
	}
	return &node, nil
}

func collectNodes(rows pgx.Rows) ([]*models.Node, error) {
	defer rows.Close()

	var nodes []*models.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, classifyPgError(err, "failed to scan node")
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError(err, "error iterating rows")
	}
	return nodes, nil
}

// classifyPgError maps driver errors onto application error kinds
func classifyPgError(err error, message string) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return apperrors.NewParentNotFoundError(apperrors.ErrCodeParentNotFound, "Parent node not found", err)
		case "23514", "23502", "22P02":
			return apperrors.NewValidationError(apperrors.ErrCodeInvalidInput, pgErr.Message, err)
		case "23505":
			return apperrors.NewStorageError(apperrors.ErrCodeDatabaseConstraint, message, err)
		case "40001", "40P01":
			return apperrors.NewStorageError(apperrors.ErrCodeTransactionFailed, message, err)
		}
	}
	return apperrors.NewStorageError(apperrors.ErrCodeDatabaseQuery, message, err)
}

// Get retrieves a node by its ID
func (r *PostgresNodeRepository) Get(ctx context.Context, id string) (*models.Node, error) {
	param, ok := parseID(id)
	if !ok {
		return nil, errNodeNotFound(id)
	}

	query := `SELECT ` + nodeColumns + ` FROM tree_nodes WHERE id = $1`
	node, err := scanNode(r.q.QueryRow(ctx, query, param))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errNodeNotFound(id)
	}
	if err != nil {
		return nil, classifyPgError(err, "failed to query node")
	}
	return node, nil
}

// Exists reports whether a node with the given ID is stored
func (r *PostgresNodeRepository) Exists(ctx context.Context, id string) (bool, error) {
	param, ok := parseID(id)
	if !ok {
		return false, nil
	}

	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tree_nodes WHERE id = $1)`, param).Scan(&exists)
	if err != nil {
		return false, classifyPgError(err, "failed to check node")
	}
	return exists, nil
}

// Insert stores a new node and returns it as persisted
func (r *PostgresNodeRepository) Insert(ctx context.Context, node *models.Node) (*models.Node, error) {
	cp := prepareInsert(node, r.now())

	id, ok := parseID(cp.ID)
	if !ok {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeInvalidFormat,
			fmt.Sprintf("node id %s is not a UUID", cp.ID), nil)
	}
	parent, err := parentParam(cp.ParentID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO tree_nodes (id, label, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + nodeColumns

	out, err := scanNode(r.q.QueryRow(ctx, query, id, cp.Label, parent, cp.CreatedAt, cp.UpdatedAt))
	if err != nil {
		return nil, classifyPgError(err, "failed to insert node")
	}
	return out, nil
}

// Update applies a partial update to a node
func (r *PostgresNodeRepository) Update(ctx context.Context, id string, patch models.NodePatch) (*models.Node, error) {
	param, ok := parseID(id)
	if !ok {
		return nil, errNodeNotFound(id)
	}

	var parent pgtype.UUID
	if patch.SetParent {
		var err error
		if parent, err = parentParam(patch.ParentID); err != nil {
			return nil, err
		}
	}

	query := `
		UPDATE tree_nodes SET
			label = COALESCE($2::text, label),
			parent_id = CASE WHEN $3::boolean THEN $4::uuid ELSE parent_id END,
			updated_at = $5
		WHERE id = $1
		RETURNING ` + nodeColumns

	node, err := scanNode(r.q.QueryRow(ctx, query, param, patch.Label, patch.SetParent, parent, r.now()))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errNodeNotFound(id)
	}
	if err != nil {
		return nil, classifyPgError(err, "failed to update node")
	}
	return node, nil
}

// Delete removes a single node
func (r *PostgresNodeRepository) Delete(ctx context.Context, id string) error {
	param, ok := parseID(id)
	if !ok {
		return errNodeNotFound(id)
	}

	cmdTag, err := r.q.Exec(ctx, `DELETE FROM tree_nodes WHERE id = $1`, param)
	if err != nil {
		return classifyPgError(err, "failed to delete node")
	}
	if cmdTag.RowsAffected() == 0 {
		return errNodeNotFound(id)
	}
	return nil
}

// ListAll returns every node ordered by creation time
func (r *PostgresNodeRepository) ListAll(ctx context.Context) ([]*models.Node, error) {
	rows, err := r.q.Query(ctx, `SELECT `+nodeColumns+` FROM tree_nodes ORDER BY created_at, id`)
	if err != nil {
		return nil, classifyPgError(err, "failed to query nodes")
	}
	return collectNodes(rows)
}

// ListChildren returns the direct children of all given parents
func (r *PostgresNodeRepository) ListChildren(ctx context.Context, parentIDs []string) ([]*models.Node, error) {
	params := make([]pgtype.UUID, 0, len(parentIDs))
	for _, id := range parentIDs {
		if param, ok := parseID(id); ok {
			params = append(params, param)
		}
	}
	if len(params) == 0 {
		return nil, nil
	}

	query := `SELECT ` + nodeColumns + ` FROM tree_nodes WHERE parent_id = ANY($1) ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, params)
	if err != nil {
		return nil, classifyPgError(err, "failed to query children")
	}
	return collectNodes(rows)
}

// InsertBatch bulk loads nodes with COPY. Parents must precede children
// or already exist; the foreign key is checked when the COPY completes.
func (r *PostgresNodeRepository) InsertBatch(ctx context.Context, nodes []*models.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	now := r.now()
	rows := make([][]any, 0, len(nodes))
	for _, node := range nodes {
		cp := prepareInsert(node, now)
		id, ok := parseID(cp.ID)
		if !ok {
			return apperrors.NewValidationError(apperrors.ErrCodeInvalidFormat,
				fmt.Sprintf("node id %s is not a UUID", cp.ID), nil)
		}
		parent, err := parentParam(cp.ParentID)
		if err != nil {
			return err
		}
		rows = append(rows, []any{id, cp.Label, parent, cp.CreatedAt, cp.UpdatedAt})
	}

	_, err := r.q.CopyFrom(ctx,
		pgx.Identifier{"tree_nodes"},
		[]string{"id", "label", "parent_id", "created_at", "updated_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return classifyPgError(err, "failed to copy nodes")
	}
	return nil
}

// DeleteBatch removes all given nodes in one statement
func (r *PostgresNodeRepository) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	params := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		if param, ok := parseID(id); ok {
			params = append(params, param)
		}
	}
	if len(params) == 0 {
		return 0, nil
	}

	cmdTag, err := r.q.Exec(ctx, `DELETE FROM tree_nodes WHERE id = ANY($1)`, params)
	if err != nil {
		return 0, classifyPgError(err, "failed to delete nodes")
	}
	return int(cmdTag.RowsAffected()), nil
}

// PostgresNodeStore is the NodeStore backed by PostgreSQL. Every WithTx
// call takes the same transaction-scoped advisory lock, so structural
// mutations are applied one at a time across all connections.
type PostgresNodeStore struct {
	*PostgresNodeRepository
	db *PostgresService
}

// NewPostgresNodeStore creates a node store on the service's pool
func NewPostgresNodeStore(db *PostgresService) *PostgresNodeStore {
	return &PostgresNodeStore{
		PostgresNodeRepository: NewPostgresNodeRepository(db.Pool()),
		db:                     db,
	}
}

// WithTx runs fn inside one serialized database transaction
func (s *PostgresNodeStore) WithTx(ctx context.Context, fn TxFunc) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return classifyPgError(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, TreeLockKey); err != nil {
		return classifyPgError(err, "failed to acquire tree lock")
	}

	repo := &PostgresNodeRepository{q: tx, now: s.now}
	if err := fn(repo); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyPgError(err, "failed to commit transaction")
	}
	return nil
}

// Ping checks database connectivity
func (s *PostgresNodeStore) Ping(ctx context.Context) error {
	return s.db.Health(ctx)
}

// Close releases the connection pool
func (s *PostgresNodeStore) Close() error {
	s.db.Close()
	return nil
}
