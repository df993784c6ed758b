package models

import (
	"errors"
	"strings"
	"time"
)

// PricePoint is one historical floor price observation (in RON) for a collection
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// TimeWindow selects how far back a history chart reaches
type TimeWindow string

const (
	Window24H TimeWindow = "24h"
	Window7D  TimeWindow = "7d"
	Window30D TimeWindow = "30d"
	Window90D TimeWindow = "90d"
	Window1Y  TimeWindow = "1y"
	WindowAll TimeWindow = "all"
)

// DefaultWindow is used when no range is requested
const DefaultWindow = Window24H

// ErrUnknownTimeWindow is returned when a range string does not name a window
var ErrUnknownTimeWindow = errors.New("unknown time window")

// AllTimeWindows returns the supported windows from shortest to longest
func AllTimeWindows() []TimeWindow {
	return []TimeWindow{Window24H, Window7D, Window30D, Window90D, Window1Y, WindowAll}
}

// ParseTimeWindow parses a range query value. Empty selects DefaultWindow.
func ParseTimeWindow(s string) (TimeWindow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultWindow, nil
	case "24h", "1d", "day":
		return Window24H, nil
	case "7d", "week":
		return Window7D, nil
	case "30d", "month":
		return Window30D, nil
	case "90d", "3month":
		return Window90D, nil
	case "1y", "year", "365d":
		return Window1Y, nil
	case "all":
		return WindowAll, nil
	default:
		return "", ErrUnknownTimeWindow
	}
}

// Duration is the lookback from now. WindowAll returns 0 (unbounded).
func (w TimeWindow) Duration() time.Duration {
	switch w {
	case Window24H:
		return 24 * time.Hour
	case Window7D:
		return 7 * 24 * time.Hour
	case Window30D:
		return 30 * 24 * time.Hour
	case Window90D:
		return 90 * 24 * time.Hour
	case Window1Y:
		return 365 * 24 * time.Hour
	case WindowAll:
		return 0
	default:
		return 24 * time.Hour
	}
}

// IsUnbounded reports whether the window has no start boundary
func (w TimeWindow) IsUnbounded() bool {
	return w == WindowAll
}

// MoralisInterval maps the window to the provider's "interval" query parameter
func (w TimeWindow) MoralisInterval() string {
	switch w {
	case Window24H:
		return "1d"
	case Window7D:
		return "7d"
	case Window30D:
		return "30d"
	case Window90D:
		return "90d"
	case Window1Y:
		return "1y"
	case WindowAll:
		return "all"
	default:
		return "7d"
	}
}

// FloorPriceObservation is a persisted floor price sample
type FloorPriceObservation struct {
	ID         uint         `json:"id" gorm:"primaryKey;autoIncrement"`
	Collection CollectionID `json:"collection" gorm:"not null;uniqueIndex:idx_floor_obs"`
	ObservedAt time.Time    `json:"observed_at" gorm:"not null;uniqueIndex:idx_floor_obs;index"`
	Source     string       `json:"source" gorm:"not null;uniqueIndex:idx_floor_obs"` // "moralis" or "marketplace"
	PriceRON   float64      `json:"price_ron"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Observation sources
const (
	SourceMoralis     = "moralis"
	SourceMarketplace = "marketplace"
)

// ToPricePoint converts a stored observation into a merger input
func (o FloorPriceObservation) ToPricePoint() PricePoint {
	return PricePoint{Timestamp: o.ObservedAt, Price: o.PriceRON}
}
