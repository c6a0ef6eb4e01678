package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/staple-duck/snh/errors"
	"github.com/staple-duck/snh/models"
)

// NodeRepository is the persistence contract for nodes. It has no tree
// semantics: it does not check parents, cycles or descendants. Get, Update and
// Delete on an unknown id fail with a not_found AppError.
type NodeRepository interface {
	Get(ctx context.Context, id string) (*models.Node, error)
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, node *models.Node) (*models.Node, error)
	Update(ctx context.Context, id string, patch models.NodePatch) (*models.Node, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]*models.Node, error)
}

// ChildLister is implemented by repositories that can resolve children by
// parent id without a full scan (an index on parent_id).
type ChildLister interface {
	ListChildren(ctx context.Context, parentIDs []string) ([]*models.Node, error)
}

// BatchWriter is implemented by repositories with multi-row writes
type BatchWriter interface {
	InsertBatch(ctx context.Context, nodes []*models.Node) error
	DeleteBatch(ctx context.Context, ids []string) (int, error)
}

// TxFunc runs against a repository view bound to one transaction
type TxFunc func(repo NodeRepository) error

// NodeStore is a NodeRepository that can also run a group of operations as a
// single atomic unit. Structural mutations are serialized by WithTx; reads on
// the store itself never observe a partially applied transaction.
type NodeStore interface {
	NodeRepository
	WithTx(ctx context.Context, fn TxFunc) error
	Ping(ctx context.Context) error
	Close() error
}

// NewNodeID generates a fresh node identifier
func NewNodeID() string {
	return uuid.NewString()
}

func errNodeNotFound(id string) error {
	return apperrors.NewNotFoundError(apperrors.ErrCodeNodeNotFound,
		fmt.Sprintf("Node %s not found", id), nil)
}

// prepareInsert fills the generated fields of a node about to be stored
func prepareInsert(node *models.Node, now time.Time) *models.Node {
	cp := node.Copy()
	if cp.ID == "" {
		cp.ID = NewNodeID()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = cp.CreatedAt
	}
	return cp
}

// sortByCreation orders nodes by creation time, then id, for stable listings
func sortByCreation(nodes []*models.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if !nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
		}
		return nodes[i].ID < nodes[j].ID
	})
}
