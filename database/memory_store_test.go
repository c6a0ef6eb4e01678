package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/staple-duck/snh/errors"
	"github.com/staple-duck/snh/models"
)

func TestMemoryStore_InsertOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, id := range []string{"c", "a", "b"} {
		_, err := store.Insert(ctx, &models.Node{ID: id, Label: id})
		require.NoError(t, err)
	}

	nodes, err := store.ListAll(ctx)
	require.NoError(t, err)
	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.Equal(t, 3, store.Len())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	n, err := store.Insert(ctx, &models.Node{ID: "a", Label: "a"})
	require.NoError(t, err)
	n.Label = "mutated"

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Label)
}

func TestMemoryStore_WithTxIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.Insert(ctx, &models.Node{ID: "keep", Label: "keep"})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(repo NodeRepository) error {
		_, err := repo.Insert(ctx, &models.Node{ID: "new", Label: "new"})
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, "keep"))

		// the transaction sees its own writes
		nodes, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, "new", nodes[0].ID)

		return apperrors.NewValidationError(apperrors.ErrCodeInvalidInput, "abort", nil)
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	nodes, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "keep", nodes[0].ID)
}

func TestMemoryStore_CommitDeleteAndReinsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, id := range []string{"a", "b"} {
		_, err := store.Insert(ctx, &models.Node{ID: id, Label: id})
		require.NoError(t, err)
	}

	err := store.WithTx(ctx, func(repo NodeRepository) error {
		if err := repo.Delete(ctx, "a"); err != nil {
			return err
		}
		_, err := repo.Insert(ctx, &models.Node{ID: "c", Label: "c"})
		return err
	})
	require.NoError(t, err)

	nodes, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "b", nodes[0].ID)
	assert.Equal(t, "c", nodes[1].ID)
}

func TestMemoryStore_Errors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	_, err = store.Update(ctx, "missing", models.NodePatch{Label: models.StringPtr("x")})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	assert.True(t, apperrors.IsType(store.Delete(ctx, "missing"), apperrors.ErrTypeNotFound))

	_, err = store.Insert(ctx, &models.Node{ID: "dup", Label: "d"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &models.Node{ID: "dup", Label: "d"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = store.WithTx(cancelled, func(repo NodeRepository) error { return nil })
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}
