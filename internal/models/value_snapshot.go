package models

import (
	"time"
)

// PortfolioValueSnapshot stores daily wallet value for historical tracking
type PortfolioValueSnapshot struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SnapshotDate  time.Time `json:"snapshot_date" gorm:"uniqueIndex;not null"`
	Wallet        string    `json:"wallet" gorm:"index"`
	MokiCount     int       `json:"moki_count"`
	BoosterCount  int       `json:"booster_count"`
	MokiFloor     float64   `json:"moki_floor"`
	BoosterFloor  float64   `json:"booster_floor"`
	TotalValueRON float64   `json:"total_value_ron"`
	TotalValueUSD float64   `json:"total_value_usd"`
	RonUSD        float64   `json:"ron_usd"`
	CreatedAt     time.Time `json:"created_at"`
}

// ValueHistoryResponse is the API response for value history
type ValueHistoryResponse struct {
	Snapshots []PortfolioValueSnapshot `json:"snapshots"`
	Period    string                   `json:"period"` // "week", "month", "3month", "year", "all"
}
