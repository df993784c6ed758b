package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codyseavey/moki-tracker/internal/database"
	"github.com/codyseavey/moki-tracker/internal/models"
)

// newTestDB opens a private in-memory database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type fakeHistorySource struct {
	mu     sync.Mutex
	points map[string][]models.PricePoint
	errs   map[string]error
	calls  int
}

func (f *fakeHistorySource) FloorPriceHistory(_ context.Context, contract string, _ models.TimeWindow) ([]models.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[contract]; err != nil {
		return nil, err
	}
	return f.points[contract], nil
}

var historyNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestHistoryService(t *testing.T, source FloorHistorySource) (*HistoryService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewHistoryService(db, source, models.DefaultContracts(), NewMemoryCache(16))
	svc.now = func() time.Time { return historyNow }
	return svc, db
}

func TestCollectionHistories_PersistsAndTopsUp(t *testing.T) {
	source := &fakeHistorySource{points: map[string][]models.PricePoint{
		models.DefaultMokiContract: {
			{Timestamp: historyNow.Add(-3 * time.Hour), Price: 10},
			{Timestamp: historyNow.Add(-2 * time.Hour), Price: 11},
		},
		models.DefaultBoosterContract: {
			{Timestamp: historyNow.Add(-5 * time.Hour), Price: 50},
		},
	}}
	svc, db := newTestHistoryService(t, source)

	// One marketplace observation newer than the upstream data, one older
	require.NoError(t, svc.RecordObservation(models.CollectionMoki, 12, historyNow.Add(-30*time.Minute), models.SourceMarketplace))
	require.NoError(t, svc.RecordObservation(models.CollectionMoki, 9, historyNow.Add(-150*time.Minute), models.SourceMarketplace))

	histories := svc.CollectionHistories(context.Background(), models.Window24H)

	moki := histories[models.CollectionMoki]
	require.Len(t, moki, 3)
	assert.Equal(t, 10.0, moki[0].Price)
	assert.Equal(t, 11.0, moki[1].Price)
	assert.Equal(t, 12.0, moki[2].Price)

	require.Len(t, histories[models.CollectionBooster], 1)

	var stored int64
	db.Model(&models.FloorPriceObservation{}).Where("source = ?", models.SourceMoralis).Count(&stored)
	assert.Equal(t, int64(3), stored)
}

func TestCollectionHistories_UpsertIsIdempotent(t *testing.T) {
	points := []models.PricePoint{{Timestamp: historyNow.Add(-time.Hour), Price: 10}}
	svc, db := newTestHistoryService(t, nil)

	require.NoError(t, svc.persist(models.CollectionMoki, points, models.SourceMoralis))
	points[0].Price = 15
	require.NoError(t, svc.persist(models.CollectionMoki, points, models.SourceMoralis))

	var rows []models.FloorPriceObservation
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 15.0, rows[0].PriceRON)
}

func TestCollectionHistories_FallsBackToStored(t *testing.T) {
	source := &fakeHistorySource{
		points: map[string][]models.PricePoint{
			models.DefaultBoosterContract: {{Timestamp: historyNow.Add(-time.Hour), Price: 50}},
		},
		errs: map[string]error{
			models.DefaultMokiContract: errors.New("upstream down"),
		},
	}
	svc, _ := newTestHistoryService(t, source)

	require.NoError(t, svc.RecordObservation(models.CollectionMoki, 8, historyNow.Add(-4*time.Hour), models.SourceMoralis))
	require.NoError(t, svc.RecordObservation(models.CollectionMoki, 9, historyNow.Add(-1*time.Hour), models.SourceMarketplace))
	// Outside the 24h window
	require.NoError(t, svc.RecordObservation(models.CollectionMoki, 1, historyNow.Add(-48*time.Hour), models.SourceMoralis))

	histories := svc.CollectionHistories(context.Background(), models.Window24H)

	moki := histories[models.CollectionMoki]
	require.Len(t, moki, 2)
	assert.Equal(t, 8.0, moki[0].Price)
	assert.Equal(t, 9.0, moki[1].Price)

	// The healthy collection is unaffected
	require.Len(t, histories[models.CollectionBooster], 1)
	assert.Equal(t, 50.0, histories[models.CollectionBooster][0].Price)
}

func TestCollectionHistories_EmptyWhenNothingStored(t *testing.T) {
	source := &fakeHistorySource{errs: map[string]error{
		models.DefaultMokiContract:    errors.New("boom"),
		models.DefaultBoosterContract: errors.New("boom"),
	}}
	svc, _ := newTestHistoryService(t, source)

	histories := svc.CollectionHistories(context.Background(), models.Window7D)
	for _, id := range models.AllCollections() {
		got, ok := histories[id]
		assert.True(t, ok, "missing %s", id)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestCollectionHistories_NoSource(t *testing.T) {
	svc, _ := newTestHistoryService(t, nil)
	require.NoError(t, svc.RecordObservation(models.CollectionBooster, 40, historyNow.Add(-time.Hour), models.SourceMarketplace))

	histories := svc.CollectionHistories(context.Background(), models.WindowAll)
	assert.Len(t, histories[models.CollectionBooster], 1)
	assert.Empty(t, histories[models.CollectionMoki])
}

func TestCollectionHistories_Cached(t *testing.T) {
	source := &fakeHistorySource{points: map[string][]models.PricePoint{
		models.DefaultMokiContract: {{Timestamp: historyNow.Add(-time.Hour), Price: 10}},
	}}
	svc, _ := newTestHistoryService(t, source)

	first := svc.CollectionHistories(context.Background(), models.Window30D)
	second := svc.CollectionHistories(context.Background(), models.Window30D)

	assert.Equal(t, 2, source.calls, "one upstream call per collection")
	require.Len(t, second[models.CollectionMoki], 1)
	assert.True(t, first[models.CollectionMoki][0].Timestamp.Equal(second[models.CollectionMoki][0].Timestamp))

	// A different window is a different cache entry
	svc.CollectionHistories(context.Background(), models.Window90D)
	assert.Equal(t, 4, source.calls)
}

func TestCollectionHistories_FallbackNotCached(t *testing.T) {
	source := &fakeHistorySource{
		points: map[string][]models.PricePoint{
			models.DefaultMokiContract:    {{Timestamp: historyNow.Add(-time.Hour), Price: 10}},
			models.DefaultBoosterContract: {{Timestamp: historyNow.Add(-time.Hour), Price: 50}},
		},
		errs: map[string]error{
			models.DefaultMokiContract: errors.New("upstream down"),
		},
	}
	svc, _ := newTestHistoryService(t, source)

	first := svc.CollectionHistories(context.Background(), models.Window7D)
	assert.Empty(t, first[models.CollectionMoki])
	assert.Equal(t, 2, source.calls)

	// Upstream recovers, the next request must go back to it
	source.mu.Lock()
	source.errs = nil
	source.mu.Unlock()

	second := svc.CollectionHistories(context.Background(), models.Window7D)
	assert.Equal(t, 4, source.calls)
	require.Len(t, second[models.CollectionMoki], 1)
	assert.Equal(t, 10.0, second[models.CollectionMoki][0].Price)

	// Healthy now, so cached
	svc.CollectionHistories(context.Background(), models.Window7D)
	assert.Equal(t, 4, source.calls)
}

// ctxHistorySource fails like a real client once its context is done
type ctxHistorySource struct {
	fakeHistorySource
}

func (f *ctxHistorySource) FloorPriceHistory(ctx context.Context, contract string, window models.TimeWindow) ([]models.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.fakeHistorySource.FloorPriceHistory(ctx, contract, window)
}

func TestCollectionHistories_CallerCancellationDoesNotFailLoad(t *testing.T) {
	source := &ctxHistorySource{fakeHistorySource{points: map[string][]models.PricePoint{
		models.DefaultMokiContract: {{Timestamp: historyNow.Add(-time.Hour), Price: 10}},
	}}}
	svc, _ := newTestHistoryService(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	histories := svc.CollectionHistories(ctx, models.Window24H)
	require.Len(t, histories[models.CollectionMoki], 1)
	assert.Equal(t, 10.0, histories[models.CollectionMoki][0].Price)

	// The healthy result was cached for everyone else
	again := svc.CollectionHistories(context.Background(), models.Window24H)
	require.Len(t, again[models.CollectionMoki], 1)
	assert.Equal(t, 2, source.calls)
}

func TestLatestFloor(t *testing.T) {
	svc, _ := newTestHistoryService(t, nil)

	_, ok := svc.LatestFloor(models.CollectionMoki)
	assert.False(t, ok)

	require.NoError(t, svc.RecordObservation(models.CollectionMoki, 10, historyNow.Add(-2*time.Hour), models.SourceMoralis))
	require.NoError(t, svc.RecordObservation(models.CollectionMoki, 14, historyNow.Add(-time.Hour), models.SourceMarketplace))

	floor, ok := svc.LatestFloor(models.CollectionMoki)
	assert.True(t, ok)
	assert.Equal(t, 14.0, floor)
}
