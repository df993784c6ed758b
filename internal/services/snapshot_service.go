package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	applog "github.com/codyseavey/moki-tracker/internal/logger"
	"github.com/codyseavey/moki-tracker/internal/metrics"
	"github.com/codyseavey/moki-tracker/internal/models"
)

// ErrNoWallet is returned when snapshots are requested without a tracked wallet
var ErrNoWallet = errors.New("no wallet address configured")

// SummarySource values a wallet at current prices
type SummarySource interface {
	Summary(ctx context.Context, wallet string) (*models.PortfolioSummary, error)
}

// SnapshotService records the tracked wallet's value once per day
type SnapshotService struct {
	db            *gorm.DB
	portfolio     SummarySource
	wallet        string
	snapshotHour  int // Hour of day to take snapshot (0-23)
	checkInterval time.Duration
	now           func() time.Time

	mu           sync.RWMutex
	lastSnapshot time.Time
}

// NewSnapshotService creates a new snapshot service for wallet
func NewSnapshotService(db *gorm.DB, portfolio SummarySource, wallet string, snapshotHour int) *SnapshotService {
	if snapshotHour < 0 || snapshotHour > 23 {
		snapshotHour = 23 // Default: 11 PM
	}
	return &SnapshotService{
		db:            db,
		portfolio:     portfolio,
		wallet:        wallet,
		snapshotHour:  snapshotHour,
		checkInterval: 15 * time.Minute,
		now:           time.Now,
	}
}

// Start begins the background snapshot worker
func (s *SnapshotService) Start(ctx context.Context) {
	if s.wallet == "" {
		applog.L().Warn("Snapshot service: no wallet configured, not starting")
		return
	}
	applog.L().Infof("Snapshot service started: will record daily value of %s after %02d:00", s.wallet, s.snapshotHour)

	// Check if we need to take a snapshot for today on startup
	s.checkAndSnapshot(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			applog.L().Info("Snapshot service stopping...")
			return
		case <-ticker.C:
			s.checkAndSnapshot(ctx)
		}
	}
}

// checkAndSnapshot checks if a snapshot is needed and takes one
func (s *SnapshotService) checkAndSnapshot(ctx context.Context) {
	now := s.now()

	if s.hasSnapshotForDate(dayStart(now)) {
		return
	}

	// Only take automatic snapshots at or after the configured hour
	if now.Hour() >= s.snapshotHour {
		if err := s.TakeSnapshot(ctx); err != nil {
			applog.L().Errorf("Snapshot service: failed to take snapshot: %v", err)
		}
	}
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// hasSnapshotForDate checks if a snapshot exists for the given date
func (s *SnapshotService) hasSnapshotForDate(date time.Time) bool {
	var count int64
	s.db.Model(&models.PortfolioValueSnapshot{}).
		Where("snapshot_date = ?", date).
		Count(&count)
	return count > 0
}

// TakeSnapshot records the wallet's current value, replacing today's row if present
func (s *SnapshotService) TakeSnapshot(ctx context.Context) error {
	if s.wallet == "" {
		return ErrNoWallet
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	summary, err := s.portfolio.Summary(ctx, s.wallet)
	if err != nil {
		return fmt.Errorf("failed to value portfolio: %w", err)
	}

	now := s.now()
	snapshot := models.PortfolioValueSnapshot{
		SnapshotDate:  dayStart(now),
		Wallet:        summary.Wallet,
		TotalValueRON: summary.TotalValueRON,
		TotalValueUSD: summary.TotalValueUSD,
		RonUSD:        summary.RonUSD,
		CreatedAt:     now,
	}
	for _, c := range summary.Collections {
		switch c.Collection {
		case models.CollectionMoki:
			snapshot.MokiCount = c.Units
			snapshot.MokiFloor = c.FloorRON
		case models.CollectionBooster:
			snapshot.BoosterCount = c.Units
			snapshot.BoosterFloor = c.FloorRON
		}
	}

	// Use upsert to handle duplicate dates
	result := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"wallet", "moki_count", "booster_count", "moki_floor", "booster_floor",
			"total_value_ron", "total_value_usd", "ron_usd",
		}),
	}).Create(&snapshot)
	if result.Error != nil {
		return result.Error
	}

	s.lastSnapshot = now
	metrics.SnapshotsTotal.Inc()
	applog.L().Infof("Snapshot service: recorded value snapshot for %s (total: %s)",
		snapshot.SnapshotDate.Format("2006-01-02"), snapshotTotal(summary))

	return nil
}

// snapshotTotal formats the RON total, followed by the USD label when known
func snapshotTotal(summary *models.PortfolioSummary) string {
	total := fmt.Sprintf("%.2f RON", summary.TotalValueRON)
	if summary.TotalValueLabel != "" {
		total += ", " + summary.TotalValueLabel
	}
	return total
}

// GetHistory retrieves value snapshots for a given period
func (s *SnapshotService) GetHistory(period string) ([]models.PortfolioValueSnapshot, error) {
	snapshots := []models.PortfolioValueSnapshot{}

	now := s.now()
	var startDate time.Time

	switch period {
	case "week":
		startDate = now.AddDate(0, 0, -7)
	case "month":
		startDate = now.AddDate(0, -1, 0)
	case "3month":
		startDate = now.AddDate(0, -3, 0)
	case "year":
		startDate = now.AddDate(-1, 0, 0)
	case "all":
		startDate = time.Time{} // No filter
	default:
		startDate = now.AddDate(0, -1, 0) // Default to 1 month
	}

	query := s.db.Order("snapshot_date ASC")
	if !startDate.IsZero() {
		query = query.Where("snapshot_date >= ?", dayStart(startDate))
	}

	if err := query.Find(&snapshots).Error; err != nil {
		return nil, err
	}

	return snapshots, nil
}

// GetLastSnapshot returns the most recent snapshot
func (s *SnapshotService) GetLastSnapshot() *models.PortfolioValueSnapshot {
	var snapshot models.PortfolioValueSnapshot

	if err := s.db.Order("snapshot_date DESC").First(&snapshot).Error; err != nil {
		return nil
	}

	return &snapshot
}

// LastSnapshotTime returns when this process last recorded a snapshot
func (s *SnapshotService) LastSnapshotTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSnapshot
}

// Wallet returns the tracked wallet address
func (s *SnapshotService) Wallet() string {
	return s.wallet
}
