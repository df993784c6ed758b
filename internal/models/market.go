package models

import "time"

// RonPrice is the RON/USD quote
type RonPrice struct {
	USDPrice  float64 `json:"usd_price"`
	Change24h float64 `json:"change_24h"` // percentage
}

// CollectionStats are the marketplace statistics for one collection.
// Volume and floor are in RON.
type CollectionStats struct {
	Volume    float64 `json:"volume"`
	VolumeUSD float64 `json:"volume_usd"`
	Floor     float64 `json:"floor"`
	FloorUSD  float64 `json:"floor_usd"`
	Supply    int     `json:"supply"`
	Owners    int     `json:"owners"`
	Listings  int     `json:"listings"`
}

// FurListing counts active sale listings for one Moki fur trait
type FurListing struct {
	Fur   string `json:"fur"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

// SpecialFurs are the Moki fur traits counted individually, in display order after Common
var SpecialFurs = []string{"Rainbow", "Gold", "Spirit", "Shadow"}

// FurCommon is the derived bucket for listings without a special fur
const FurCommon = "Common"

// FurColor returns the chart color for a fur
func FurColor(fur string) string {
	switch fur {
	case "Spirit":
		return "#a4f4f9"
	case "Shadow":
		return "#8a65db"
	case "Gold":
		return "#ffd700"
	case "Rainbow":
		return "#ff99cc"
	default:
		return "#a1a1aa"
	}
}

// ActivityType is a marketplace activity kind
type ActivityType string

const (
	ActivitySale     ActivityType = "Sale"
	ActivityListing  ActivityType = "Listing"
	ActivityOffer    ActivityType = "Offer"
	ActivityTransfer ActivityType = "Transfer"
)

// AllActivityTypes returns the activity kinds shown on the dashboard
func AllActivityTypes() []ActivityType {
	return []ActivityType{ActivitySale, ActivityListing, ActivityOffer, ActivityTransfer}
}

// Activity is one marketplace event
type Activity struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Image     string       `json:"image,omitempty"`
	Price     float64      `json:"price"` // RON
	Type      ActivityType `json:"type"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	Timestamp int64        `json:"timestamp"` // unix seconds
	Time      *time.Time   `json:"time,omitempty"`
}

// CollectionActivity groups recent events by kind
type CollectionActivity struct {
	Sales     []Activity `json:"sales"`
	Listings  []Activity `json:"listings"`
	Offers    []Activity `json:"offers"`
	Transfers []Activity `json:"transfers"`
}

// Set stores a list under its kind
func (a *CollectionActivity) Set(kind ActivityType, list []Activity) {
	if list == nil {
		list = []Activity{}
	}
	switch kind {
	case ActivitySale:
		a.Sales = list
	case ActivityListing:
		a.Listings = list
	case ActivityOffer:
		a.Offers = list
	case ActivityTransfer:
		a.Transfers = list
	}
}

// CollectionDashboard is the dashboard block for one collection
type CollectionDashboard struct {
	CollectionStats
	ListingsByFur []FurListing       `json:"listings_by_fur,omitempty"`
	Activity      CollectionActivity `json:"activity"`
}

// DashboardData is the full market dashboard payload
type DashboardData struct {
	RonPrice float64             `json:"ron_price"`
	Moki     CollectionDashboard `json:"moki"`
	Booster  CollectionDashboard `json:"booster"`
	AsOf     time.Time           `json:"as_of"`
}

// TraitFloors maps rarity (fur) to its cheapest listing in RON
type TraitFloors map[string]float64

// Trade is one completed sale
type Trade struct {
	Price     float64   `json:"price"` // RON
	Timestamp time.Time `json:"timestamp"`
}

// Offer is the best standing bid for a token
type Offer struct {
	Price float64 `json:"price"`
	Token string  `json:"token"`
	Kind  string  `json:"kind"` // "trait" or "direct"
}
