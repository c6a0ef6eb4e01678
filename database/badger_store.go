package database

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	apperrors "github.com/staple-duck/snh/errors"
	"github.com/staple-duck/snh/models"
)

// Key layout:
//
//	node/<id>               -> JSON encoded models.Node
//	child/<parent>/<child>  -> empty, secondary index on parent id
var (
	nodePrefix  = []byte("node/")
	childPrefix = []byte("child/")
)

func nodeKey(id string) []byte {
	return append(append([]byte{}, nodePrefix...), id...)
}

func childIndexPrefix(parentID string) []byte {
	key := append(append([]byte{}, childPrefix...), parentID...)
	return append(key, '/')
}

func childKey(parentID, childID string) []byte {
	return append(childIndexPrefix(parentID), childID...)
}

// BadgerOptions configures an embedded BadgerDB node store
type BadgerOptions struct {
	// Path is the data directory. Ignored when InMemory is true.
	Path       string
	InMemory   bool
	SyncWrites bool
	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger badger.Logger
}

// BadgerStore is a NodeStore on top of BadgerDB. Badger transactions are
// serializable snapshots; WithTx additionally funnels all structural writes
// through one mutex so check-then-act sequences never race each other.
type BadgerStore struct {
	db      *badger.DB
	writeMu sync.Mutex
	now     func() time.Time
}

// OpenBadgerStore opens or creates a BadgerDB-backed store
func OpenBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeConfigurationError,
			"badger path is required for a persistent store", nil)
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, apperrors.NewStorageError(apperrors.ErrCodeDatabaseConnection,
				"failed to create badger directory", err)
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithSyncWrites(opts.SyncWrites).WithNumVersionsToKeep(1).WithLogger(opts.Logger)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, apperrors.NewStorageError(apperrors.ErrCodeDatabaseConnection,
			"failed to open badger database", err)
	}
	return NewBadgerStore(db), nil
}

// NewBadgerStore wraps an already opened database
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, now: time.Now}
}

// DB returns the underlying database
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

// WithTx runs fn inside a single read-write Badger transaction
func (s *BadgerStore) WithTx(ctx context.Context, fn TxFunc) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return apperrors.NewStorageError(apperrors.ErrCodeTransactionFailed, "transaction aborted", err)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn, now: s.now})
	})
	return classifyBadgerError(err, "transaction failed")
}

func (s *BadgerStore) read(fn func(tx *badgerTx) error) error {
	err := s.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn, now: s.now})
	})
	return classifyBadgerError(err, "read failed")
}

// Get returns a node by id
func (s *BadgerStore) Get(ctx context.Context, id string) (*models.Node, error) {
	var node *models.Node
	err := s.read(func(tx *badgerTx) error {
		var err error
		node, err = tx.Get(ctx, id)
		return err
	})
	return node, err
}

// Exists reports whether a node exists
func (s *BadgerStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.read(func(tx *badgerTx) error {
		var err error
		exists, err = tx.Exists(ctx, id)
		return err
	})
	return exists, err
}

// ListAll returns every node ordered by creation time
func (s *BadgerStore) ListAll(ctx context.Context) ([]*models.Node, error) {
	var nodes []*models.Node
	err := s.read(func(tx *badgerTx) error {
		var err error
		nodes, err = tx.ListAll(ctx)
		return err
	})
	return nodes, err
}

// ListChildren returns the direct children of the given parents
func (s *BadgerStore) ListChildren(ctx context.Context, parentIDs []string) ([]*models.Node, error) {
	var nodes []*models.Node
	err := s.read(func(tx *badgerTx) error {
		var err error
		nodes, err = tx.ListChildren(ctx, parentIDs)
		return err
	})
	return nodes, err
}

// Insert stores a node in its own transaction
func (s *BadgerStore) Insert(ctx context.Context, node *models.Node) (*models.Node, error) {
	var out *models.Node
	err := s.WithTx(ctx, func(repo NodeRepository) error {
		var err error
		out, err = repo.Insert(ctx, node)
		return err
	})
	return out, err
}

// Update patches a node in its own transaction
func (s *BadgerStore) Update(ctx context.Context, id string, patch models.NodePatch) (*models.Node, error) {
	var out *models.Node
	err := s.WithTx(ctx, func(repo NodeRepository) error {
		var err error
		out, err = repo.Update(ctx, id, patch)
		return err
	})
	return out, err
}

// Delete removes a single node in its own transaction
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(repo NodeRepository) error {
		return repo.Delete(ctx, id)
	})
}

// Ping reports whether the database is open
func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return apperrors.NewStorageError(apperrors.ErrCodeDatabaseConnection, "badger database is closed", nil)
	}
	return nil
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// RunGC runs value log garbage collection until nothing is left to rewrite
func (s *BadgerStore) RunGC(discardRatio float64) error {
	for {
		err := s.db.RunValueLogGC(discardRatio)
		if stderrors.Is(err, badger.ErrNoRewrite) || stderrors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return classifyBadgerError(err, "value log gc failed")
		}
	}
}

func classifyBadgerError(err error, message string) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return err
	}
	code := apperrors.ErrCodeDatabaseQuery
	if stderrors.Is(err, badger.ErrConflict) || stderrors.Is(err, badger.ErrTxnTooBig) {
		code = apperrors.ErrCodeTransactionFailed
	}
	return apperrors.NewStorageError(code, message, err)
}

type badgerTx struct {
	txn *badger.Txn
	now func() time.Time
}

func (t *badgerTx) load(id string) (*models.Node, error) {
	item, err := t.txn.Get(nodeKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var node models.Node
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &node)
	})
	if err != nil {
		return nil, apperrors.NewStorageError(apperrors.ErrCodeSerializationError,
			fmt.Sprintf("failed to decode node %s", id), err)
	}
	return &node, nil
}

func (t *badgerTx) store(node *models.Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return apperrors.NewStorageError(apperrors.ErrCodeSerializationError, "failed to encode node", err)
	}
	return t.txn.Set(nodeKey(node.ID), data)
}

func (t *badgerTx) Get(ctx context.Context, id string) (*models.Node, error) {
	node, err := t.load(id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, errNodeNotFound(id)
	}
	return node, nil
}

func (t *badgerTx) Exists(ctx context.Context, id string) (bool, error) {
	_, err := t.txn.Get(nodeKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *badgerTx) Insert(ctx context.Context, node *models.Node) (*models.Node, error) {
	cp := prepareInsert(node, t.now())

	exists, err := t.Exists(ctx, cp.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.NewStorageError(apperrors.ErrCodeDatabaseConstraint,
			fmt.Sprintf("duplicate node id %s", cp.ID), nil)
	}

	if err := t.store(cp); err != nil {
		return nil, err
	}
	if cp.ParentID != nil {
		if err := t.txn.Set(childKey(*cp.ParentID, cp.ID), nil); err != nil {
			return nil, err
		}
	}
	return cp, nil
}

func (t *badgerTx) Update(ctx context.Context, id string, patch models.NodePatch) (*models.Node, error) {
	node, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	oldParent := node.ParentOrEmpty()
	patch.Apply(node, t.now())
	if err := t.store(node); err != nil {
		return nil, err
	}

	if newParent := node.ParentOrEmpty(); newParent != oldParent {
		if oldParent != "" {
			if err := t.txn.Delete(childKey(oldParent, id)); err != nil {
				return nil, err
			}
		}
		if newParent != "" {
			if err := t.txn.Set(childKey(newParent, id), nil); err != nil {
				return nil, err
			}
		}
	}
	return node, nil
}

func (t *badgerTx) Delete(ctx context.Context, id string) error {
	node, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := t.txn.Delete(nodeKey(id)); err != nil {
		return err
	}
	if node.ParentID != nil {
		return t.txn.Delete(childKey(*node.ParentID, id))
	}
	return nil
}

func (t *badgerTx) ListAll(ctx context.Context) ([]*models.Node, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = nodePrefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	var nodes []*models.Node
	for it.Rewind(); it.Valid(); it.Next() {
		var node models.Node
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		})
		if err != nil {
			return nil, apperrors.NewStorageError(apperrors.ErrCodeSerializationError,
				fmt.Sprintf("failed to decode %s", it.Item().Key()), err)
		}
		nodes = append(nodes, &node)
	}

	sortByCreation(nodes)
	return nodes, nil
}

func (t *badgerTx) ListChildren(ctx context.Context, parentIDs []string) ([]*models.Node, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false

	var children []*models.Node
	for _, parentID := range parentIDs {
		prefix := childIndexPrefix(parentID)
		opts.Prefix = prefix

		it := t.txn.NewIterator(opts)
		var ids []string
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(bytes.TrimPrefix(it.Item().KeyCopy(nil), prefix)))
		}
		it.Close()

		var siblings []*models.Node
		for _, id := range ids {
			node, err := t.load(id)
			if err != nil {
				return nil, err
			}
			if node != nil {
				siblings = append(siblings, node)
			}
		}
		sortByCreation(siblings)
		children = append(children, siblings...)
	}
	return children, nil
}

func (t *badgerTx) InsertBatch(ctx context.Context, nodes []*models.Node) error {
	for _, node := range nodes {
		if _, err := t.Insert(ctx, node); err != nil {
			return err
		}
	}
	return nil
}

func (t *badgerTx) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	for _, id := range ids {
		if err := t.Delete(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
