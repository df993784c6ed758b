package services

import (
	"context"
	"sync"
	"time"

	applog "github.com/codyseavey/moki-tracker/internal/logger"
	"github.com/codyseavey/moki-tracker/internal/metrics"
	"github.com/codyseavey/moki-tracker/internal/models"
)

const defaultFloorPollInterval = 15 * time.Minute

// FloorSource returns a collection's current floor price in RON
type FloorSource interface {
	Floor(ctx context.Context, id models.CollectionID) (float64, error)
}

// ObservationRecorder persists a floor price observation
type ObservationRecorder interface {
	RecordObservation(id models.CollectionID, price float64, at time.Time, source string) error
}

// FailedCollection is a collection whose last poll failed
type FailedCollection struct {
	Collection models.CollectionID `json:"collection"`
	Reason     string              `json:"reason"`
	At         time.Time           `json:"at"`
}

// FloorStatus reports what the floor worker has done
type FloorStatus struct {
	LastUpdateTime    time.Time                       `json:"last_update_time"`
	NextUpdateTime    time.Time                       `json:"next_update_time"`
	PollInterval      string                          `json:"poll_interval"`
	ObservationsToday int                             `json:"observations_today"`
	LatestFloors      map[models.CollectionID]float64 `json:"latest_floors"`
	FailedCollections []FailedCollection              `json:"failed_collections,omitempty"`
	RefreshPending    bool                            `json:"refresh_pending"`
}

// FloorWorker polls the marketplace floor of every tracked collection and
// stores it, so the value chart has fresh points between upstream updates
type FloorWorker struct {
	floors   FloorSource
	recorder ObservationRecorder
	interval time.Duration
	now      func() time.Time
	refresh  chan struct{}

	mu                sync.RWMutex
	lastUpdateTime    time.Time
	lastStatsDay      time.Time
	observationsToday int
	latestFloors      map[models.CollectionID]float64
	failed            []FailedCollection
}

// NewFloorWorker creates a floor worker polling every interval
func NewFloorWorker(floors FloorSource, recorder ObservationRecorder, interval time.Duration) *FloorWorker {
	if interval <= 0 {
		interval = defaultFloorPollInterval
	}
	return &FloorWorker{
		floors:       floors,
		recorder:     recorder,
		interval:     interval,
		now:          time.Now,
		refresh:      make(chan struct{}, 1),
		latestFloors: make(map[models.CollectionID]float64),
	}
}

// Start runs the poll loop until ctx is cancelled
func (w *FloorWorker) Start(ctx context.Context) {
	applog.L().Infof("Floor worker started: will record collection floors every %v", w.interval)

	// Run immediately on startup
	recorded := w.RunOnce(ctx)
	applog.L().Infof("Floor worker: initial run recorded %d observations", recorded)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			applog.L().Info("Floor worker stopping...")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-w.refresh:
			applog.L().Info("Floor worker: manual refresh requested")
			w.RunOnce(ctx)
		}
	}
}

// TriggerRefresh asks the running loop to poll now. It reports false when
// a refresh is already pending.
func (w *FloorWorker) TriggerRefresh() bool {
	select {
	case w.refresh <- struct{}{}:
		return true
	default:
		return false
	}
}

// resetDailyStatsIfNeeded resets observationsToday at midnight
func (w *FloorWorker) resetDailyStatsIfNeeded(now time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if w.lastStatsDay.Before(today) {
		if !w.lastStatsDay.IsZero() {
			applog.L().Infof("Floor worker: daily stats reset (previous day: %d observations)", w.observationsToday)
		}
		w.observationsToday = 0
		w.lastStatsDay = today
	}
}

// RunOnce polls every collection once and returns how many observations were stored
func (w *FloorWorker) RunOnce(ctx context.Context) int {
	start := time.Now()
	defer func() {
		metrics.WorkerRunDuration.WithLabelValues("floor").Observe(time.Since(start).Seconds())
	}()

	now := w.now()
	recorded := 0
	var failed []FailedCollection
	floors := make(map[models.CollectionID]float64)

	for _, id := range models.AllCollections() {
		floor, err := w.floors.Floor(ctx, id)
		if err != nil {
			applog.L().Warnf("Floor worker: %s floor lookup failed: %v", id, err)
			failed = append(failed, FailedCollection{Collection: id, Reason: err.Error(), At: now})
			continue
		}
		if floor <= 0 {
			// Zero means no active listings
			failed = append(failed, FailedCollection{Collection: id, Reason: "no active listings", At: now})
			continue
		}
		if err := w.recorder.RecordObservation(id, floor, now, models.SourceMarketplace); err != nil {
			applog.L().Warnf("Floor worker: failed to store %s observation: %v", id, err)
			failed = append(failed, FailedCollection{Collection: id, Reason: err.Error(), At: now})
			continue
		}

		floors[id] = floor
		recorded++
		metrics.FloorObservationsTotal.WithLabelValues(string(id)).Inc()
		metrics.FloorPriceRON.WithLabelValues(string(id)).Set(floor)
	}

	w.mu.Lock()
	w.resetDailyStatsIfNeeded(now)
	w.observationsToday += recorded
	w.lastUpdateTime = now
	for id, floor := range floors {
		w.latestFloors[id] = floor
	}
	w.failed = failed
	w.mu.Unlock()

	if recorded > 0 {
		applog.L().Debugf("Floor worker: recorded %d observations", recorded)
	}
	return recorded
}

// GetStatus returns the current status
func (w *FloorWorker) GetStatus() FloorStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	floors := make(map[models.CollectionID]float64, len(w.latestFloors))
	for id, f := range w.latestFloors {
		floors[id] = f
	}
	status := FloorStatus{
		LastUpdateTime:    w.lastUpdateTime,
		PollInterval:      w.interval.String(),
		ObservationsToday: w.observationsToday,
		LatestFloors:      floors,
		FailedCollections: append([]FailedCollection(nil), w.failed...),
		RefreshPending:    len(w.refresh) > 0,
	}
	if !w.lastUpdateTime.IsZero() {
		status.NextUpdateTime = w.lastUpdateTime.Add(w.interval)
	}
	return status
}
