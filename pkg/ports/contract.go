package ports

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSeenSetContract runs a suite of tests to verify that a SeenSet implementation
// adheres to the defined interface contract.
func RunSeenSetContract(t *testing.T, set SeenSet) {
	ctx := context.Background()
	batchID := "contract-batch-" + time.Now().Format("20060102150405.000000")

	t.Run("Add reports novelty", func(t *testing.T) {
		added, err := set.Add(ctx, batchID, "bg=red|hat=crown")
		require.NoError(t, err)
		assert.True(t, added)

		added, err = set.Add(ctx, batchID, "bg=red|hat=crown")
		require.NoError(t, err)
		assert.False(t, added, "second insert of the same key must report a duplicate")
	})

	t.Run("Namespaces are isolated", func(t *testing.T) {
		other := batchID + "-other"
		defer func() { _ = set.Clear(ctx, other) }()

		added, err := set.Add(ctx, other, "bg=red|hat=crown")
		require.NoError(t, err)
		assert.True(t, added)
	})

	t.Run("Concurrent claims are atomic", func(t *testing.T) {
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				added, err := set.Add(ctx, batchID, "bg=blue|hat=")
				assert.NoError(t, err)
				if added {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("Len and Clear", func(t *testing.T) {
		n, err := set.Len(ctx, batchID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		require.NoError(t, set.Clear(ctx, batchID))
		n, err = set.Len(ctx, batchID)
		require.NoError(t, err)
		assert.Zero(t, n)

		added, err := set.Add(ctx, batchID, "bg=red|hat=crown")
		require.NoError(t, err)
		assert.True(t, added, "cleared keys can be claimed again")
		require.NoError(t, set.Clear(ctx, batchID))
	})
}

// RunArtifactStoreContract runs a suite of tests to verify that an ArtifactStore
// implementation adheres to the defined interface contract.
func RunArtifactStoreContract(t *testing.T, store ArtifactStore) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		ref, err := store.SaveImage(ctx, 7, ".png", []byte("png-bytes"))
		require.NoError(t, err, "SaveImage should not return error")
		assert.NotEmpty(t, ref)

		md := &domain.TokenMetadata{
			Name:       "Strata #7",
			Image:      ref,
			TokenID:    7,
			Attributes: []domain.Attribute{{TraitType: "Background", Value: "Red"}},
		}
		require.NoError(t, store.SaveMetadata(ctx, md))

		loaded, err := store.LoadMetadata(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, md, loaded)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadMetadata(ctx, 999999)
		assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	})

	t.Run("List is ordered", func(t *testing.T) {
		for _, id := range []int64{12, 3} {
			require.NoError(t, store.SaveMetadata(ctx, &domain.TokenMetadata{Name: fmt.Sprint(id), TokenID: id, Attributes: []domain.Attribute{}}))
		}
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 7, 12}, ids)
	})

	t.Run("Reset", func(t *testing.T) {
		require.NoError(t, store.Reset(ctx))
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)
		_, err = store.LoadMetadata(ctx, 7)
		assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	})
}
