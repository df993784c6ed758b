package models

import (
	"strings"
)

// CollectionID identifies one of the tracked NFT collections
type CollectionID string

const (
	CollectionMoki    CollectionID = "moki"
	CollectionBooster CollectionID = "booster"
)

// Default Ronin contract addresses for the tracked collections
const (
	DefaultMokiContract    = "0x47b5a7c2e4f07772696bbf8c8c32fe2b9eabd550"
	DefaultBoosterContract = "0x3a3ea46230688a20ee45ec851dc81f76371f1235"
	// DefaultWRONContract is wrapped RON, used to look up the RON/USD price
	DefaultWRONContract = "0xe514d9deb7966c8be0ca922de8a064264ea6bcd4"
)

// AllCollections returns the tracked collections in display order
func AllCollections() []CollectionID {
	return []CollectionID{CollectionMoki, CollectionBooster}
}

// ParseCollectionID accepts the id as well as the display names used by the frontend
func ParseCollectionID(s string) (CollectionID, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "moki", "moki nft", "a":
		return CollectionMoki, true
	case "booster", "booster box", "b":
		return CollectionBooster, true
	default:
		return "", false
	}
}

// DisplayType is the asset type label shown on cards
func (c CollectionID) DisplayType() string {
	switch c {
	case CollectionMoki:
		return "Moki NFT"
	case CollectionBooster:
		return "Booster Box"
	default:
		return "Unknown"
	}
}

// Color is the accent color used for the collection in charts
func (c CollectionID) Color() string {
	switch c {
	case CollectionMoki:
		return "#4ade80"
	case CollectionBooster:
		return "#a78bfa"
	default:
		return "#9ca3af"
	}
}

// Contracts maps collections to their contract addresses (lowercase hex)
type Contracts map[CollectionID]string

// DefaultContracts returns the mainnet contract addresses
func DefaultContracts() Contracts {
	return Contracts{
		CollectionMoki:    DefaultMokiContract,
		CollectionBooster: DefaultBoosterContract,
	}
}

// CollectionFor resolves a contract address back to its collection
func (c Contracts) CollectionFor(address string) (CollectionID, bool) {
	address = strings.ToLower(address)
	for id, contract := range c {
		if strings.ToLower(contract) == address {
			return id, true
		}
	}
	return "", false
}

// Holdings is how many units of each collection a wallet currently holds.
// Missing collections count as zero.
type Holdings map[CollectionID]int

// Units returns the held unit count, clamping negative values to zero
func (h Holdings) Units(id CollectionID) int {
	n := h[id]
	if n < 0 {
		return 0
	}
	return n
}

// Total returns the number of held units across all collections
func (h Holdings) Total() int {
	total := 0
	for id := range h {
		total += h.Units(id)
	}
	return total
}
