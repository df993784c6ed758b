package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Rhymond/go-money"

	applog "github.com/codyseavey/moki-tracker/internal/logger"
	"github.com/codyseavey/moki-tracker/internal/metrics"
	"github.com/codyseavey/moki-tracker/internal/models"
	"github.com/codyseavey/moki-tracker/internal/valuation"
)

const walletNFTCacheTTL = time.Minute

// WalletNFTSource lists the tracked NFTs held by a wallet
type WalletNFTSource interface {
	WalletNFTs(ctx context.Context, wallet string, contracts models.Contracts) ([]models.WalletNFT, error)
}

// HistoryProvider returns per-collection floor histories for a window
type HistoryProvider interface {
	CollectionHistories(ctx context.Context, window models.TimeWindow) map[models.CollectionID][]models.PricePoint
}

// RonPriceProvider returns the current RON/USD quote
type RonPriceProvider interface {
	RonPrice(ctx context.Context) (models.RonPrice, error)
}

// PortfolioService values a wallet's Moki and Booster holdings
type PortfolioService struct {
	nfts      WalletNFTSource
	history   HistoryProvider
	ronPrice  RonPriceProvider
	contracts models.Contracts
	cache     ResponseCache
	now       func() time.Time
}

// NewPortfolioService creates a portfolio service. ronPrice may be nil.
func NewPortfolioService(nfts WalletNFTSource, history HistoryProvider, ronPrice RonPriceProvider, contracts models.Contracts, cache ResponseCache) *PortfolioService {
	if contracts == nil {
		contracts = models.DefaultContracts()
	}
	return &PortfolioService{
		nfts:      nfts,
		history:   history,
		ronPrice:  ronPrice,
		contracts: contracts,
		cache:     cache,
		now:       time.Now,
	}
}

// NFTs returns the tracked NFTs held by wallet. A partial listing is
// returned without error when pagination failed after the first page.
func (s *PortfolioService) NFTs(ctx context.Context, wallet string) ([]models.WalletNFT, error) {
	addr, err := models.NormalizeAddress(wallet)
	if err != nil {
		return nil, err
	}

	key := "nfts:" + addr
	var cached []models.WalletNFT
	if s.cache != nil && s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	if s.nfts == nil {
		return nil, ErrMoralisDisabled
	}
	nfts, err := s.nfts.WalletNFTs(ctx, addr, s.contracts)
	if err != nil {
		if len(nfts) == 0 {
			return nil, fmt.Errorf("failed to fetch wallet NFTs: %w", err)
		}
		applog.FromContext(ctx).Warnf("Portfolio service: partial NFT listing for %s (%d items): %v", addr, len(nfts), err)
		return nfts, nil
	}
	if nfts == nil {
		nfts = []models.WalletNFT{}
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, nfts, walletNFTCacheTTL)
	}
	return nfts, nil
}

// Holdings counts the units wallet holds per collection
func (s *PortfolioService) Holdings(ctx context.Context, wallet string) (models.Holdings, error) {
	nfts, err := s.NFTs(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return models.HoldingsFromNFTs(nfts), nil
}

// History rebuilds the wallet's value chart for window
func (s *PortfolioService) History(ctx context.Context, wallet string, window models.TimeWindow) (*models.PortfolioHistoryResponse, error) {
	addr, err := models.NormalizeAddress(wallet)
	if err != nil {
		return nil, err
	}
	holdings, err := s.Holdings(ctx, addr)
	if err != nil {
		return nil, err
	}

	histories := s.history.CollectionHistories(ctx, window)
	points := valuation.Reconstruct(histories, holdings, window, s.now())

	return &models.PortfolioHistoryResponse{
		Wallet:   addr,
		Range:    window,
		Holdings: holdings,
		Points:   points,
	}, nil
}

// Summary values the wallet at current floor prices
func (s *PortfolioService) Summary(ctx context.Context, wallet string) (*models.PortfolioSummary, error) {
	addr, err := models.NormalizeAddress(wallet)
	if err != nil {
		return nil, err
	}
	holdings, err := s.Holdings(ctx, addr)
	if err != nil {
		return nil, err
	}

	now := s.now()
	histories := s.history.CollectionHistories(ctx, models.Window24H)

	var ronUSD float64
	if s.ronPrice != nil {
		if quote, err := s.ronPrice.RonPrice(ctx); err != nil {
			applog.FromContext(ctx).Warnf("Portfolio service: RON price unavailable: %v", err)
		} else {
			ronUSD = quote.USDPrice
		}
	}

	summary := &models.PortfolioSummary{
		Wallet:      addr,
		Collections: make([]models.CollectionHolding, 0, len(models.AllCollections())),
		RonUSD:      ronUSD,
		AsOf:        now,
	}

	for _, id := range models.AllCollections() {
		units := holdings.Units(id)
		floor := valuation.CurrentValue(
			map[models.CollectionID][]models.PricePoint{id: histories[id]},
			models.Holdings{id: 1},
		)
		value := floor * float64(units)

		summary.Collections = append(summary.Collections, models.CollectionHolding{
			Collection:  id,
			DisplayType: id.DisplayType(),
			Units:       units,
			FloorRON:    floor,
			ValueRON:    value,
			ValueUSD:    value * ronUSD,
		})
		summary.TotalUnits += units
		summary.TotalValueRON += value

		metrics.PortfolioUnitsByCollection.WithLabelValues(string(id)).Set(float64(units))
	}

	summary.TotalValueUSD = summary.TotalValueRON * ronUSD
	summary.TotalValueLabel = money.NewFromFloat(summary.TotalValueUSD, money.USD).Display()
	summary.Change24hPct = change24h(valuation.Reconstruct(histories, holdings, models.Window24H, now))

	metrics.PortfolioValueRON.Set(summary.TotalValueRON)
	return summary, nil
}

// change24h compares the first and last points of the 24h chart
func change24h(points []models.ValuationPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	first := points[0].TotalValue
	last := points[len(points)-1].TotalValue
	if first == 0 {
		return 0
	}
	return (last - first) / first * 100
}
