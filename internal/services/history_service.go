package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	applog "github.com/codyseavey/moki-tracker/internal/logger"
	"github.com/codyseavey/moki-tracker/internal/metrics"
	"github.com/codyseavey/moki-tracker/internal/models"
)

const historyCacheTTL = 5 * time.Minute

// FloorHistorySource fetches a collection's floor price history
type FloorHistorySource interface {
	FloorPriceHistory(ctx context.Context, contract string, window models.TimeWindow) ([]models.PricePoint, error)
}

// HistoryService assembles per-collection floor price histories from the
// upstream API, topped up and backed by locally stored observations
type HistoryService struct {
	db        *gorm.DB
	source    FloorHistorySource
	contracts models.Contracts
	cache     ResponseCache
	group     singleflight.Group
	now       func() time.Time
}

// NewHistoryService creates a history service. source may be nil, in which
// case only stored observations are served.
func NewHistoryService(db *gorm.DB, source FloorHistorySource, contracts models.Contracts, cache ResponseCache) *HistoryService {
	if contracts == nil {
		contracts = models.DefaultContracts()
	}
	return &HistoryService{
		db:        db,
		source:    source,
		contracts: contracts,
		cache:     cache,
		now:       time.Now,
	}
}

// CollectionHistories returns the floor history of every tracked collection
// for window. It never fails: a collection whose upstream fetch fails is
// served from stored observations, or with an empty history.
func (s *HistoryService) CollectionHistories(ctx context.Context, window models.TimeWindow) map[models.CollectionID][]models.PricePoint {
	key := "history:" + string(window)

	if s.cache != nil {
		var cached map[models.CollectionID][]models.PricePoint
		if s.cache.Get(ctx, key, &cached) {
			return cached
		}
	}

	// The load is shared by every waiting caller, so it must outlive the
	// caller that happened to start it
	loadCtx := context.WithoutCancel(ctx)
	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		histories, degraded := s.fetchAll(loadCtx, window)
		// A fallback result is served but not cached so the next request
		// retries upstream
		if s.cache != nil && !degraded {
			s.cache.Set(loadCtx, key, histories, historyCacheTTL)
		}
		return histories, nil
	})
	return v.(map[models.CollectionID][]models.PricePoint)
}

type upstreamHistory struct {
	points []models.PricePoint
	err    error
}

// fetchAll reports degraded when any collection fell back because its
// upstream fetch failed. A disabled upstream is not degraded.
func (s *HistoryService) fetchAll(ctx context.Context, window models.TimeWindow) (map[models.CollectionID][]models.PricePoint, bool) {
	collections := models.AllCollections()
	fetched := make([]upstreamHistory, len(collections))

	// Fetch concurrently; goroutines never return an error so one failure
	// does not cancel the other collection
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range collections {
		g.Go(func() error {
			fetched[i] = s.fetchUpstream(gctx, id, window)
			return nil
		})
	}
	_ = g.Wait()

	// Storage work runs sequentially, sqlite serializes writers anyway
	histories := make(map[models.CollectionID][]models.PricePoint, len(collections))
	degraded := false
	for i, id := range collections {
		if err := fetched[i].err; err != nil && !errors.Is(err, ErrMoralisDisabled) {
			degraded = true
		}
		histories[id] = s.resolve(id, window, fetched[i])
	}
	return histories, degraded
}

func (s *HistoryService) fetchUpstream(ctx context.Context, id models.CollectionID, window models.TimeWindow) upstreamHistory {
	if s.source == nil {
		return upstreamHistory{err: ErrMoralisDisabled}
	}
	contract, ok := s.contracts[id]
	if !ok {
		return upstreamHistory{err: errors.New("no contract configured")}
	}
	points, err := s.source.FloorPriceHistory(ctx, contract, window)
	return upstreamHistory{points: points, err: err}
}

// resolve applies the fallback chain for one collection
func (s *HistoryService) resolve(id models.CollectionID, window models.TimeWindow, up upstreamHistory) []models.PricePoint {
	if up.err != nil {
		if !errors.Is(up.err, ErrMoralisDisabled) {
			applog.L().Warnf("History service: %s %s fetch failed: %v", id, window, up.err)
		}
		stored, err := s.StoredHistory(id, window)
		if err != nil {
			applog.L().Warnf("History service: failed to load stored %s history: %v", id, err)
		}
		if len(stored) > 0 {
			metrics.HistoryFallbacksTotal.WithLabelValues(string(id), "stored").Inc()
			return stored
		}
		metrics.HistoryFallbacksTotal.WithLabelValues(string(id), "empty").Inc()
		return []models.PricePoint{}
	}

	points := up.points
	if points == nil {
		points = []models.PricePoint{}
	}
	if err := s.persist(id, points, models.SourceMoralis); err != nil {
		applog.L().Warnf("History service: failed to persist %s history: %v", id, err)
	}

	// Top up with marketplace observations newer than the upstream's last point
	since := s.windowStart(window)
	if n := len(points); n > 0 && points[n-1].Timestamp.After(since) {
		since = points[n-1].Timestamp
	}
	recent, err := s.observationsAfter(id, models.SourceMarketplace, since)
	if err != nil {
		applog.L().Warnf("History service: failed to load %s observations: %v", id, err)
		return points
	}
	for _, obs := range recent {
		points = append(points, obs.ToPricePoint())
	}
	return points
}

func (s *HistoryService) windowStart(window models.TimeWindow) time.Time {
	if window.IsUnbounded() {
		return time.Time{}
	}
	return s.now().Add(-window.Duration()).UTC()
}

// persist upserts points as observations of source
func (s *HistoryService) persist(id models.CollectionID, points []models.PricePoint, source string) error {
	if s.db == nil || len(points) == 0 {
		return nil
	}
	rows := make([]models.FloorPriceObservation, 0, len(points))
	for _, p := range points {
		rows = append(rows, models.FloorPriceObservation{
			Collection: id,
			ObservedAt: p.Timestamp.UTC(),
			Source:     source,
			PriceRON:   p.Price,
		})
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "observed_at"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"price_ron"}),
	}).CreateInBatches(&rows, 200).Error
}

// RecordObservation stores one floor price observation
func (s *HistoryService) RecordObservation(id models.CollectionID, price float64, at time.Time, source string) error {
	return s.persist(id, []models.PricePoint{{Timestamp: at, Price: price}}, source)
}

// StoredHistory returns stored observations of any source inside window, oldest first
func (s *HistoryService) StoredHistory(id models.CollectionID, window models.TimeWindow) ([]models.PricePoint, error) {
	if s.db == nil {
		return nil, nil
	}
	query := s.db.Where("collection = ?", id).Order("observed_at ASC")
	if start := s.windowStart(window); !start.IsZero() {
		query = query.Where("observed_at >= ?", start)
	}

	var rows []models.FloorPriceObservation
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	points := make([]models.PricePoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, r.ToPricePoint())
	}
	return points, nil
}

func (s *HistoryService) observationsAfter(id models.CollectionID, source string, after time.Time) ([]models.FloorPriceObservation, error) {
	if s.db == nil {
		return nil, nil
	}
	var rows []models.FloorPriceObservation
	err := s.db.Where("collection = ? AND source = ? AND observed_at > ?", id, source, after.UTC()).
		Order("observed_at ASC").
		Find(&rows).Error
	return rows, err
}

// LatestFloor returns the most recent stored floor price for a collection
func (s *HistoryService) LatestFloor(id models.CollectionID) (float64, bool) {
	if s.db == nil {
		return 0, false
	}
	var obs models.FloorPriceObservation
	if err := s.db.Where("collection = ?", id).Order("observed_at DESC").First(&obs).Error; err != nil {
		return 0, false
	}
	return obs.PriceRON, true
}
