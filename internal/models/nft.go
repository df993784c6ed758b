package models

import (
	"strings"
)

// Rarity is the marketplace rarity bucket derived from the rarity label
type Rarity string

const (
	RarityCommon    Rarity = "Common"
	RarityUncommon  Rarity = "Uncommon"
	RarityRare      Rarity = "Rare"
	RarityEpic      Rarity = "Epic"
	RarityLegendary Rarity = "Legendary"
)

// RarityFromLabel maps labels like "Top 5%" to a bucket
func RarityFromLabel(label string) Rarity {
	switch {
	case strings.Contains(label, "Top 1%"):
		return RarityLegendary
	case strings.Contains(label, "Top 5%"):
		return RarityEpic
	case strings.Contains(label, "Top 20%"):
		return RarityRare
	case strings.Contains(label, "Top 40%"):
		return RarityUncommon
	default:
		return RarityCommon
	}
}

// NFTAttribute is a single trait on a token
type NFTAttribute struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Count      int     `json:"count,omitempty"`
	Percentage float64 `json:"percentage,omitempty"`
}

// WalletNFT is a token held by the wallet
type WalletNFT struct {
	TokenID         string         `json:"token_id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Image           string         `json:"image"`
	Collection      CollectionID   `json:"collection,omitempty"`
	Type            string         `json:"type"`
	Rarity          Rarity         `json:"rarity"`
	RarityLabel     string         `json:"rarity_label"`
	RarityRank      int            `json:"rarity_rank"`
	FloorPrice      float64        `json:"floor_price"`
	LastSale        float64        `json:"last_sale"`
	Attributes      []NFTAttribute `json:"attributes"`
	ContractAddress string         `json:"contract_address"`
	Color           string         `json:"color"`
}

// HoldingsFromNFTs counts held tokens per tracked collection
func HoldingsFromNFTs(nfts []WalletNFT) Holdings {
	h := Holdings{}
	for _, id := range AllCollections() {
		h[id] = 0
	}
	for _, n := range nfts {
		if n.Collection == "" {
			continue
		}
		h[n.Collection]++
	}
	return h
}
