package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

func prediction(readID string) domain.Prediction {
	return domain.Prediction{
		ReadID:        readID,
		BundleVersion: "abc123",
		Assignments: []domain.Assignment{
			{TaxonID: "tax-001", TaxonName: "Cyprinus carpio", Confidence: 0.9},
		},
	}
}

func TestCacheHitAndMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(16)

	_, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k1", prediction("r1"), time.Minute))

	got, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, prediction("r1"), *got)
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(16)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k1", prediction("r1"), time.Minute))

	_, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCacheEvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(2)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", prediction("r1"), time.Minute))
	require.NoError(t, c.Set(ctx, "long", prediction("r2"), time.Hour))
	require.NoError(t, c.Set(ctx, "new", prediction("r3"), time.Hour))

	assert.Equal(t, 2, c.Len())
	_, ok, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok, "entry closest to expiry should be evicted")

	_, ok, err = c.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheZeroTTLIsNoop(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(16)

	require.NoError(t, c.Set(ctx, "k1", prediction("r1"), 0))
	assert.Zero(t, c.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(128)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k-%d", j%32)
				_ = c.Set(ctx, key, prediction(key), time.Minute)
				if p, ok, err := c.Get(ctx, key); err == nil && ok {
					// Entries are snapshots; a concurrent Set must never
					// expose a half-written prediction.
					assert.Equal(t, key, p.ReadID)
					assert.Len(t, p.Assignments, 1)
				}
			}
		}(i)
	}
	wg.Wait()
}
