package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	applog "github.com/codyseavey/moki-tracker/internal/logger"
	"github.com/codyseavey/moki-tracker/internal/metrics"
	"github.com/codyseavey/moki-tracker/internal/models"
)

const (
	dashboardCacheTTL   = 30 * time.Second
	ronPriceCacheTTL    = 60 * time.Second
	traitFloorsCacheTTL = 5 * time.Minute
	tradesCacheTTL      = 2 * time.Minute

	// dashboardActivitySize is how many events of each kind the dashboard lists
	dashboardActivitySize = 10

	// furTrait is the Moki trait the listing breakdown and trait floors use
	furTrait = "Fur"
)

// ErrUnknownCollection is returned for a collection that is not tracked
var ErrUnknownCollection = errors.New("unknown collection")

// traitFloorFurs are the furs with a trait floor, besides Common
var traitFloorFurs = []string{"Spirit", "Shadow", "Gold", "Rainbow", "1 of 1"}

// MarketDataSource is the marketplace API used by the dashboard
type MarketDataSource interface {
	TokenStats(ctx context.Context, contract string) (models.CollectionStats, error)
	ListingCount(ctx context.Context, contract, trait, value string) (int, error)
	TraitFloor(ctx context.Context, contract, trait, value string) (float64, error)
	Activities(ctx context.Context, contract string, kind models.ActivityType, size int) ([]models.Activity, error)
	BestOffer(ctx context.Context, contract, tokenID string) (*models.Offer, error)
}

// TokenDataSource serves token prices and trades
type TokenDataSource interface {
	RonPrice(ctx context.Context, wronContract string) (models.RonPrice, error)
	CollectionTrades(ctx context.Context, contract string) ([]models.Trade, error)
}

// DashboardService builds the market overview
type DashboardService struct {
	market    MarketDataSource
	tokens    TokenDataSource
	contracts models.Contracts
	wron      string
	cache     ResponseCache
	group     singleflight.Group
	now       func() time.Time
}

// NewDashboardService creates a dashboard service. tokens may be nil when
// no Moralis key is configured.
func NewDashboardService(market MarketDataSource, tokens TokenDataSource, contracts models.Contracts, wron string, cache ResponseCache) *DashboardService {
	if contracts == nil {
		contracts = models.DefaultContracts()
	}
	if wron == "" {
		wron = models.DefaultWRONContract
	}
	if cache == nil {
		cache = NewMemoryCache(defaultCacheSize)
	}
	return &DashboardService{
		market:    market,
		tokens:    tokens,
		contracts: contracts,
		wron:      wron,
		cache:     cache,
		now:       time.Now,
	}
}

// cached serves key from the cache or loads it once for all concurrent callers
func cached[T any](ctx context.Context, s *DashboardService, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var value T
	if s.cache.Get(ctx, key, &value) {
		return value, nil
	}
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		loaded, err := load()
		if err != nil {
			return loaded, err
		}
		s.cache.Set(ctx, key, loaded, ttl)
		return loaded, nil
	})
	if err != nil {
		return value, err
	}
	return v.(T), nil
}

// RonPrice returns the RON/USD quote
func (s *DashboardService) RonPrice(ctx context.Context) (models.RonPrice, error) {
	return cached(ctx, s, "ron-price", ronPriceCacheTTL, func() (models.RonPrice, error) {
		if s.tokens == nil {
			return models.RonPrice{}, ErrMoralisDisabled
		}
		price, err := s.tokens.RonPrice(ctx, s.wron)
		if err != nil {
			return models.RonPrice{}, err
		}
		metrics.RonPriceUSD.Set(price.USDPrice)
		return price, nil
	})
}

// Dashboard returns stats, the fur listing breakdown and recent activity
// for both collections. Every upstream call is independent: a failure
// zeroes its own slot only.
func (s *DashboardService) Dashboard(ctx context.Context) (*models.DashboardData, error) {
	data, err := cached(ctx, s, "dashboard", dashboardCacheTTL, func() (models.DashboardData, error) {
		return s.buildDashboard(ctx), nil
	})
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func (s *DashboardService) buildDashboard(ctx context.Context) models.DashboardData {
	log := applog.FromContext(ctx)

	var (
		ron          models.RonPrice
		stats        = make([]models.CollectionStats, len(models.AllCollections()))
		furCounts    = make([]int, len(models.SpecialFurs))
		activityKind = models.AllActivityTypes()
		activities   = make([][][]models.Activity, len(models.AllCollections()))
	)
	for i := range activities {
		activities[i] = make([][]models.Activity, len(activityKind))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		price, err := s.RonPrice(gctx)
		if err != nil && !errors.Is(err, ErrMoralisDisabled) {
			log.Warnf("Dashboard service: RON price failed: %v", err)
		}
		ron = price
		return nil
	})

	for ci, id := range models.AllCollections() {
		contract := s.contracts[id]

		g.Go(func() error {
			st, err := s.market.TokenStats(gctx, contract)
			if err != nil {
				log.Warnf("Dashboard service: %s stats failed: %v", id, err)
				return nil
			}
			stats[ci] = st
			return nil
		})

		for ki, kind := range activityKind {
			g.Go(func() error {
				list, err := s.market.Activities(gctx, contract, kind, dashboardActivitySize)
				if err != nil {
					log.Warnf("Dashboard service: %s %s activity failed: %v", id, kind, err)
					return nil
				}
				activities[ci][ki] = list
				return nil
			})
		}
	}

	mokiContract := s.contracts[models.CollectionMoki]
	for fi, fur := range models.SpecialFurs {
		g.Go(func() error {
			n, err := s.market.ListingCount(gctx, mokiContract, furTrait, fur)
			if err != nil {
				log.Warnf("Dashboard service: %s listing count failed: %v", fur, err)
				return nil
			}
			furCounts[fi] = n
			return nil
		})
	}

	_ = g.Wait()

	data := models.DashboardData{
		RonPrice: ron.USDPrice,
		AsOf:     s.now(),
	}
	for ci, id := range models.AllCollections() {
		block := models.CollectionDashboard{CollectionStats: withUSD(stats[ci], ron.USDPrice)}
		for ki, kind := range activityKind {
			block.Activity.Set(kind, activities[ci][ki])
		}
		if id == models.CollectionMoki {
			block.ListingsByFur = furBreakdown(block.Listings, furCounts)
		}

		switch id {
		case models.CollectionMoki:
			data.Moki = block
		case models.CollectionBooster:
			data.Booster = block
		}
		if block.Floor > 0 {
			metrics.FloorPriceRON.WithLabelValues(string(id)).Set(block.Floor)
		}
	}
	return data
}

func withUSD(stats models.CollectionStats, ronUSD float64) models.CollectionStats {
	stats.VolumeUSD = stats.Volume * ronUSD
	stats.FloorUSD = stats.Floor * ronUSD
	return stats
}

// furBreakdown lists Common first, derived as the listings not carrying a
// special fur, followed by the special furs in display order
func furBreakdown(totalListings int, specialCounts []int) []models.FurListing {
	listings := make([]models.FurListing, 0, len(models.SpecialFurs)+1)

	special := 0
	for _, n := range specialCounts {
		special += n
	}
	common := totalListings - special
	if common < 0 {
		common = 0
	}
	listings = append(listings, models.FurListing{
		Fur:   models.FurCommon,
		Count: common,
		Color: models.FurColor(models.FurCommon),
	})

	for i, fur := range models.SpecialFurs {
		count := 0
		if i < len(specialCounts) {
			count = specialCounts[i]
		}
		listings = append(listings, models.FurListing{Fur: fur, Count: count, Color: models.FurColor(fur)})
	}
	return listings
}

// TraitFloors returns the cheapest Moki listing per fur. Common has no
// dedicated query and is always 0; failed lookups are 0 as well.
func (s *DashboardService) TraitFloors(ctx context.Context) (models.TraitFloors, error) {
	return cached(ctx, s, "trait-floors", traitFloorsCacheTTL, func() (models.TraitFloors, error) {
		contract := s.contracts[models.CollectionMoki]
		prices := make([]float64, len(traitFloorFurs))

		g, gctx := errgroup.WithContext(ctx)
		for i, fur := range traitFloorFurs {
			g.Go(func() error {
				price, err := s.market.TraitFloor(gctx, contract, furTrait, fur)
				if err != nil {
					applog.FromContext(ctx).Warnf("Dashboard service: %s floor failed: %v", fur, err)
					return nil
				}
				prices[i] = price
				return nil
			})
		}
		_ = g.Wait()

		floors := models.TraitFloors{models.FurCommon: 0}
		for i, fur := range traitFloorFurs {
			floors[fur] = prices[i]
		}
		return floors, nil
	})
}

// Trades returns the latest trades of a collection, oldest first
func (s *DashboardService) Trades(ctx context.Context, id models.CollectionID) ([]models.Trade, error) {
	contract, ok := s.contracts[id]
	if !ok {
		return nil, ErrUnknownCollection
	}
	return cached(ctx, s, "trades:"+string(id), tradesCacheTTL, func() ([]models.Trade, error) {
		if s.tokens == nil {
			return []models.Trade{}, nil
		}
		trades, err := s.tokens.CollectionTrades(ctx, contract)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch trades: %w", err)
		}
		if trades == nil {
			trades = []models.Trade{}
		}
		return trades, nil
	})
}

// BestOffer returns the best bid on a token, or nil when there is none
func (s *DashboardService) BestOffer(ctx context.Context, id models.CollectionID, tokenID string) (*models.Offer, error) {
	contract, ok := s.contracts[id]
	if !ok {
		return nil, ErrUnknownCollection
	}
	offer, err := s.market.BestOffer(ctx, contract, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch offers: %w", err)
	}
	return offer, nil
}

// Floor returns the current marketplace floor of a collection in RON
func (s *DashboardService) Floor(ctx context.Context, id models.CollectionID) (float64, error) {
	contract, ok := s.contracts[id]
	if !ok {
		return 0, ErrUnknownCollection
	}
	stats, err := s.market.TokenStats(ctx, contract)
	if err != nil {
		return 0, err
	}
	return stats.Floor, nil
}
