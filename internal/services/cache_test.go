package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/moki-tracker/internal/models"
)

func TestMemoryCache_RoundTrip(t *testing.T) {
	cache := NewMemoryCache(4)
	ctx := context.Background()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	value := map[models.CollectionID][]models.PricePoint{
		models.CollectionMoki: {{Timestamp: at, Price: 12.5}},
	}
	cache.Set(ctx, "k", value, time.Minute)

	var got map[models.CollectionID][]models.PricePoint
	require.True(t, cache.Get(ctx, "k", &got))
	require.Len(t, got[models.CollectionMoki], 1)
	assert.Equal(t, 12.5, got[models.CollectionMoki][0].Price)
	assert.True(t, at.Equal(got[models.CollectionMoki][0].Timestamp))

	// Callers get a copy
	got[models.CollectionMoki][0].Price = 99
	var again map[models.CollectionID][]models.PricePoint
	require.True(t, cache.Get(ctx, "k", &again))
	assert.Equal(t, 12.5, again[models.CollectionMoki][0].Price)
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCache(4)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	cache.Set(ctx, "price", models.RonPrice{USDPrice: 1.25}, 30*time.Second)

	var price models.RonPrice
	now = now.Add(29 * time.Second)
	assert.True(t, cache.Get(ctx, "price", &price))
	assert.Equal(t, 1.25, price.USDPrice)

	now = now.Add(time.Second)
	assert.False(t, cache.Get(ctx, "price", &price))
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryCache_Eviction(t *testing.T) {
	cache := NewMemoryCache(2)
	ctx := context.Background()

	cache.Set(ctx, "a", 1, time.Minute)
	cache.Set(ctx, "b", 2, time.Minute)
	cache.Set(ctx, "c", 3, time.Minute)

	var n int
	assert.False(t, cache.Get(ctx, "a", &n))
	assert.True(t, cache.Get(ctx, "c", &n))
	assert.Equal(t, 3, n)
}

func TestNewResponseCache_FallsBackToMemory(t *testing.T) {
	cache := NewResponseCache("", "", 0)
	_, ok := cache.(*MemoryCache)
	assert.True(t, ok)
}
