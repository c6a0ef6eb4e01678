package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/staple-duck/snh/errors"
	"github.com/staple-duck/snh/models"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadgerStore(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}
	return store
}

func TestBadgerStore_InsertGet(t *testing.T) {
	ctx := context.Background()
	store := newTestBadgerStore(t)

	root, err := store.Insert(ctx, &models.Node{Label: "root"})
	require.NoError(t, err)
	assert.NotEmpty(t, root.ID)
	assert.False(t, root.CreatedAt.IsZero())

	got, err := store.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, "root", got.Label)
	assert.Nil(t, got.ParentID)

	exists, err := store.Exists(ctx, root.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = store.Get(ctx, "missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestBadgerStore_DuplicateInsert(t *testing.T) {
	ctx := context.Background()
	store := newTestBadgerStore(t)

	_, err := store.Insert(ctx, &models.Node{ID: "a", Label: "a"})
	require.NoError(t, err)

	_, err = store.Insert(ctx, &models.Node{ID: "a", Label: "again"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}

func TestBadgerStore_ChildIndexFollowsReparent(t *testing.T) {
	ctx := context.Background()
	store := newTestBadgerStore(t)

	a, err := store.Insert(ctx, &models.Node{ID: "a", Label: "a"})
	require.NoError(t, err)
	b, err := store.Insert(ctx, &models.Node{ID: "b", Label: "b"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &models.Node{ID: "c", Label: "c", ParentID: models.StringPtr(a.ID)})
	require.NoError(t, err)

	children, err := store.ListChildren(ctx, []string{a.ID})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "c", children[0].ID)

	_, err = store.Update(ctx, "c", models.NodePatch{ParentID: models.StringPtr(b.ID), SetParent: true})
	require.NoError(t, err)

	children, err = store.ListChildren(ctx, []string{a.ID})
	require.NoError(t, err)
	assert.Empty(t, children)

	children, err = store.ListChildren(ctx, []string{b.ID})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "c", children[0].ID)

	_, err = store.Update(ctx, "c", models.NodePatch{SetParent: true})
	require.NoError(t, err)
	children, err = store.ListChildren(ctx, []string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestBadgerStore_ListAllOrdered(t *testing.T) {
	ctx := context.Background()
	store := newTestBadgerStore(t)

	for _, id := range []string{"z", "m", "a"} {
		_, err := store.Insert(ctx, &models.Node{ID: id, Label: id})
		require.NoError(t, err)
	}

	nodes, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "z", nodes[0].ID)
	assert.Equal(t, "m", nodes[1].ID)
	assert.Equal(t, "a", nodes[2].ID)
}

func TestBadgerStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestBadgerStore(t)

	_, err := store.Insert(ctx, &models.Node{ID: "keep", Label: "keep"})
	require.NoError(t, err)

	failure := apperrors.NewCircularReferenceError(apperrors.ErrCodeCircularReference, "boom")
	err = store.WithTx(ctx, func(repo NodeRepository) error {
		if _, err := repo.Insert(ctx, &models.Node{ID: "temp", Label: "temp"}); err != nil {
			return err
		}
		if err := repo.Delete(ctx, "keep"); err != nil {
			return err
		}
		return failure
	})
	assert.Equal(t, failure, err)

	exists, err := store.Exists(ctx, "temp")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = store.Exists(ctx, "keep")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBadgerStore_BatchWriter(t *testing.T) {
	ctx := context.Background()
	store := newTestBadgerStore(t)

	err := store.WithTx(ctx, func(repo NodeRepository) error {
		batch, ok := repo.(BatchWriter)
		require.True(t, ok)
		return batch.InsertBatch(ctx, []*models.Node{
			{ID: "r", Label: "r"},
			{ID: "c1", Label: "c1", ParentID: models.StringPtr("r")},
		})
	})
	require.NoError(t, err)

	var deleted int
	err = store.WithTx(ctx, func(repo NodeRepository) error {
		var err error
		deleted, err = repo.(BatchWriter).DeleteBatch(ctx, []string{"c1", "r"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	nodes, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestBadgerStore_PingAfterClose(t *testing.T) {
	store, err := OpenBadgerStore(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))

	require.NoError(t, store.Close())
	assert.Error(t, store.Ping(context.Background()))
}

func TestOpenBadgerStore_RequiresPath(t *testing.T) {
	_, err := OpenBadgerStore(BadgerOptions{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}
