package models

import (
	"time"
)

// ValuationPoint is one point on the portfolio value chart
type ValuationPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	TotalValue float64   `json:"total_value"`
	ShortLabel string    `json:"short_label"`
	FullLabel  string    `json:"full_label"`
}

// PortfolioHistoryResponse is the API response for the value chart
type PortfolioHistoryResponse struct {
	Wallet   string           `json:"wallet"`
	Range    TimeWindow       `json:"range"`
	Holdings Holdings         `json:"holdings"`
	Points   []ValuationPoint `json:"points"`
}

// CollectionHolding summarizes one collection inside a wallet
type CollectionHolding struct {
	Collection  CollectionID `json:"collection"`
	DisplayType string       `json:"display_type"`
	Units       int          `json:"units"`
	FloorRON    float64      `json:"floor_ron"`
	ValueRON    float64      `json:"value_ron"`
	ValueUSD    float64      `json:"value_usd"`
}

// PortfolioSummary is the header block of the portfolio page
type PortfolioSummary struct {
	Wallet          string              `json:"wallet"`
	Collections     []CollectionHolding `json:"collections"`
	TotalUnits      int                 `json:"total_units"`
	TotalValueRON   float64             `json:"total_value_ron"`
	TotalValueUSD   float64             `json:"total_value_usd"`
	TotalValueLabel string              `json:"total_value_label"` // formatted USD, e.g. "$1,234.56"
	RonUSD          float64             `json:"ron_usd"`
	Change24hPct    float64             `json:"change_24h_pct"`
	AsOf            time.Time           `json:"as_of"`
}
