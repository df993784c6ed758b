package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeWindow(t *testing.T) {
	tests := []struct {
		input    string
		expected TimeWindow
		err      error
	}{
		{"", Window24H, nil},
		{"24h", Window24H, nil},
		{"7d", Window7D, nil},
		{"30D", Window30D, nil},
		{"90d", Window90D, nil},
		{"1y", Window1Y, nil},
		{"All", WindowAll, nil},
		{" all ", WindowAll, nil},
		{"week", Window7D, nil},
		{"5m", "", ErrUnknownTimeWindow},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeWindow(tt.input)
			if !errors.Is(err, tt.err) {
				t.Fatalf("ParseTimeWindow(%q) error = %v, want %v", tt.input, err, tt.err)
			}
			if got != tt.expected {
				t.Errorf("ParseTimeWindow(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTimeWindowDurationAndInterval(t *testing.T) {
	tests := []struct {
		window   TimeWindow
		duration time.Duration
		interval string
	}{
		{Window24H, 24 * time.Hour, "1d"},
		{Window7D, 7 * 24 * time.Hour, "7d"},
		{Window30D, 30 * 24 * time.Hour, "30d"},
		{Window90D, 90 * 24 * time.Hour, "90d"},
		{Window1Y, 365 * 24 * time.Hour, "1y"},
		{WindowAll, 0, "all"},
	}

	for _, tt := range tests {
		t.Run(string(tt.window), func(t *testing.T) {
			if got := tt.window.Duration(); got != tt.duration {
				t.Errorf("Duration() = %v, want %v", got, tt.duration)
			}
			if got := tt.window.MoralisInterval(); got != tt.interval {
				t.Errorf("MoralisInterval() = %s, want %s", got, tt.interval)
			}
		})
	}

	if !WindowAll.IsUnbounded() || Window1Y.IsUnbounded() {
		t.Error("only the all-time window should be unbounded")
	}
}

func TestRarityFromLabel(t *testing.T) {
	tests := []struct {
		label    string
		expected Rarity
	}{
		{"Top 1%", RarityLegendary},
		{"Top 5%", RarityEpic},
		{"Top 20%", RarityRare},
		{"Top 40%", RarityUncommon},
		{"Top 60%", RarityCommon},
		{"", RarityCommon},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := RarityFromLabel(tt.label); got != tt.expected {
				t.Errorf("RarityFromLabel(%q) = %s, want %s", tt.label, got, tt.expected)
			}
		})
	}
}

func TestHoldings(t *testing.T) {
	h := Holdings{CollectionMoki: 3, CollectionBooster: -2}
	if h.Units(CollectionBooster) != 0 {
		t.Errorf("negative units should clamp to 0, got %d", h.Units(CollectionBooster))
	}
	if h.Total() != 3 {
		t.Errorf("Total() = %d, want 3", h.Total())
	}

	nfts := []WalletNFT{
		{TokenID: "1", Collection: CollectionMoki},
		{TokenID: "2", Collection: CollectionMoki},
		{TokenID: "3", Collection: CollectionBooster},
		{TokenID: "4"},
	}
	got := HoldingsFromNFTs(nfts)
	if got[CollectionMoki] != 2 || got[CollectionBooster] != 1 {
		t.Errorf("HoldingsFromNFTs() = %v, want moki=2 booster=1", got)
	}
}

func TestContractsCollectionFor(t *testing.T) {
	c := DefaultContracts()
	id, ok := c.CollectionFor("0x47B5A7C2E4F07772696BBF8C8C32FE2B9EABD550")
	if !ok || id != CollectionMoki {
		t.Errorf("CollectionFor(moki upper) = %s, %v", id, ok)
	}
	if _, ok := c.CollectionFor("0x0000000000000000000000000000000000000000"); ok {
		t.Error("unknown contract should not resolve")
	}
}

func TestParseCollectionID(t *testing.T) {
	if id, ok := ParseCollectionID("Booster Box"); !ok || id != CollectionBooster {
		t.Errorf("ParseCollectionID(Booster Box) = %s, %v", id, ok)
	}
	if _, ok := ParseCollectionID("axie"); ok {
		t.Error("axie should not parse")
	}
}
