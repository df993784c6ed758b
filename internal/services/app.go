package services

import (
	"io"

	"gorm.io/gorm"

	"github.com/codyseavey/moki-tracker/internal/config"
	applog "github.com/codyseavey/moki-tracker/internal/logger"
	"github.com/codyseavey/moki-tracker/internal/models"
)

// App wires the services together for the server and the CLI
type App struct {
	Cache       ResponseCache
	Moralis     *MoralisService
	Marketplace *MarketplaceService
	History     *HistoryService
	Dashboard   *DashboardService
	Portfolio   *PortfolioService
	FloorWorker *FloorWorker
	Snapshots   *SnapshotService
}

// NewApp builds every service from cfg. Without a Moralis key the
// Moralis-backed collaborators are left nil and callers degrade to stored
// data and marketplace-only figures.
func NewApp(cfg *config.Config, db *gorm.DB) *App {
	contracts := cfg.Contracts()
	cache := NewResponseCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	moralis := NewMoralisService(cfg.Moralis.APIKey, cfg.Moralis.BaseURL, cfg.Moralis.DailyLimit).
		WithChain(cfg.Moralis.Chain)
	marketplace := NewMarketplaceService(cfg.Marketplace.Endpoint, cfg.Marketplace.APIKey)

	var (
		historySource FloorHistorySource
		nftSource     WalletNFTSource
		tokenSource   TokenDataSource
	)
	if moralis.IsEnabled() {
		historySource = moralis
		nftSource = moralis
		tokenSource = moralis
	}

	history := NewHistoryService(db, historySource, contracts, cache)
	dashboard := NewDashboardService(marketplace, tokenSource, contracts, cfg.WRONContract, cache)
	portfolio := NewPortfolioService(nftSource, history, dashboard, contracts, cache)

	applog.L().Infof("App: tracking moki=%s booster=%s", contracts[models.CollectionMoki], contracts[models.CollectionBooster])

	return &App{
		Cache:       cache,
		Moralis:     moralis,
		Marketplace: marketplace,
		History:     history,
		Dashboard:   dashboard,
		Portfolio:   portfolio,
		FloorWorker: NewFloorWorker(dashboard, history, cfg.Workers.FloorPollInterval),
		Snapshots:   NewSnapshotService(db, portfolio, cfg.WalletAddress, cfg.Workers.SnapshotHour),
	}
}

// Close releases the shared cache connection, if any
func (a *App) Close() {
	if closer, ok := a.Cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			applog.L().Warnf("App: failed to close cache: %v", err)
		}
	}
}
