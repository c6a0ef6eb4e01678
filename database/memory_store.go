package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/staple-duck/snh/errors"
	"github.com/staple-duck/snh/models"
)

// MemoryStore is an in-process NodeStore. Transactions hold the write lock
// for their whole duration and stage their writes, so a failed transaction
// leaves no trace and readers only ever see committed state.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*models.Node
	order []string
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]*models.Node),
		now:   time.Now,
	}
}

// WithTx runs fn as one atomic unit
func (s *MemoryStore) WithTx(ctx context.Context, fn TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return apperrors.NewStorageError(apperrors.ErrCodeTransactionFailed, "transaction aborted", err)
	}

	tx := &memoryTx{store: s, staged: make(map[string]*models.Node)}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) view() *memoryTx {
	return &memoryTx{store: s}
}

// Get returns a node by id
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().Get(ctx, id)
}

// Exists reports whether a node exists
func (s *MemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().Exists(ctx, id)
}

// ListAll returns every node in insertion order
func (s *MemoryStore) ListAll(ctx context.Context) ([]*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListAll(ctx)
}

// Insert stores a node in its own transaction
func (s *MemoryStore) Insert(ctx context.Context, node *models.Node) (*models.Node, error) {
	var out *models.Node
	err := s.WithTx(ctx, func(repo NodeRepository) error {
		var err error
		out, err = repo.Insert(ctx, node)
		return err
	})
	return out, err
}

// Update patches a node in its own transaction
func (s *MemoryStore) Update(ctx context.Context, id string, patch models.NodePatch) (*models.Node, error) {
	var out *models.Node
	err := s.WithTx(ctx, func(repo NodeRepository) error {
		var err error
		out, err = repo.Update(ctx, id, patch)
		return err
	})
	return out, err
}

// Delete removes a single node in its own transaction
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(repo NodeRepository) error {
		return repo.Delete(ctx, id)
	})
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of committed nodes
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// memoryTx overlays staged writes on the committed map. A nil entry in
// staged marks a deletion. With a nil staged map it is a read-only view.
type memoryTx struct {
	store    *MemoryStore
	staged   map[string]*models.Node
	inserted []string
}

func (t *memoryTx) lookup(id string) *models.Node {
	if node, ok := t.staged[id]; ok {
		return node
	}
	return t.store.nodes[id]
}

func (t *memoryTx) writable() error {
	if t.staged == nil {
		return apperrors.NewInternalError(apperrors.ErrCodeProcessingError, "write outside transaction", nil)
	}
	return nil
}

func (t *memoryTx) Get(ctx context.Context, id string) (*models.Node, error) {
	node := t.lookup(id)
	if node == nil {
		return nil, errNodeNotFound(id)
	}
	return node.Copy(), nil
}

func (t *memoryTx) Exists(ctx context.Context, id string) (bool, error) {
	return t.lookup(id) != nil, nil
}

func (t *memoryTx) Insert(ctx context.Context, node *models.Node) (*models.Node, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	cp := prepareInsert(node, t.store.now())
	if t.lookup(cp.ID) != nil {
		return nil, apperrors.NewStorageError(apperrors.ErrCodeDatabaseConstraint,
			fmt.Sprintf("duplicate node id %s", cp.ID), nil)
	}
	_, committed := t.store.nodes[cp.ID]
	_, restaged := t.staged[cp.ID]
	if !committed && !restaged {
		t.inserted = append(t.inserted, cp.ID)
	}
	t.staged[cp.ID] = cp
	return cp.Copy(), nil
}

func (t *memoryTx) Update(ctx context.Context, id string, patch models.NodePatch) (*models.Node, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	current := t.lookup(id)
	if current == nil {
		return nil, errNodeNotFound(id)
	}
	cp := current.Copy()
	patch.Apply(cp, t.store.now())
	t.staged[id] = cp
	return cp.Copy(), nil
}

func (t *memoryTx) Delete(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if t.lookup(id) == nil {
		return errNodeNotFound(id)
	}
	t.staged[id] = nil
	return nil
}

func (t *memoryTx) ListAll(ctx context.Context) ([]*models.Node, error) {
	nodes := make([]*models.Node, 0, len(t.store.order)+len(t.inserted))
	seen := make(map[string]bool, cap(nodes))
	for _, ids := range [][]string{t.store.order, t.inserted} {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if node := t.lookup(id); node != nil {
				nodes = append(nodes, node.Copy())
			}
		}
	}
	return nodes, nil
}

func (t *memoryTx) commit() {
	s := t.store
	removed := false
	for id, node := range t.staged {
		if node == nil {
			delete(s.nodes, id)
			removed = true
			continue
		}
		s.nodes[id] = node
	}

	order := s.order
	if removed {
		order = make([]string, 0, len(s.order))
		for _, id := range s.order {
			if _, ok := s.nodes[id]; ok {
				order = append(order, id)
			}
		}
	}
	for _, id := range t.inserted {
		if _, ok := s.nodes[id]; ok {
			order = append(order, id)
		}
	}
	s.order = order
}
