package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/moki-tracker/internal/models"
)

type fakeMarket struct {
	mu         sync.Mutex
	stats      map[string]models.CollectionStats
	statsErr   map[string]error
	furCounts  map[string]int
	furErr     map[string]error
	traitFloor map[string]float64
	activities map[models.ActivityType][]models.Activity
	offer      *models.Offer
	statsCalls int
}

func (f *fakeMarket) TokenStats(_ context.Context, contract string) (models.CollectionStats, error) {
	f.mu.Lock()
	f.statsCalls++
	f.mu.Unlock()
	if err := f.statsErr[contract]; err != nil {
		return models.CollectionStats{}, err
	}
	return f.stats[contract], nil
}

func (f *fakeMarket) ListingCount(_ context.Context, _, _, value string) (int, error) {
	if err := f.furErr[value]; err != nil {
		return 0, err
	}
	return f.furCounts[value], nil
}

func (f *fakeMarket) TraitFloor(_ context.Context, _, _, value string) (float64, error) {
	if value == "Shadow" {
		return 0, errors.New("timeout")
	}
	return f.traitFloor[value], nil
}

func (f *fakeMarket) Activities(_ context.Context, _ string, kind models.ActivityType, size int) ([]models.Activity, error) {
	if kind == models.ActivityTransfer {
		return nil, errors.New("transfers unavailable")
	}
	list := f.activities[kind]
	if len(list) > size {
		list = list[:size]
	}
	return list, nil
}

func (f *fakeMarket) BestOffer(_ context.Context, _, _ string) (*models.Offer, error) {
	return f.offer, nil
}

type fakeTokens struct {
	price  models.RonPrice
	err    error
	trades []models.Trade
	calls  int
}

func (f *fakeTokens) RonPrice(_ context.Context, _ string) (models.RonPrice, error) {
	f.calls++
	return f.price, f.err
}

func (f *fakeTokens) CollectionTrades(_ context.Context, _ string) ([]models.Trade, error) {
	return f.trades, nil
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		stats: map[string]models.CollectionStats{
			models.DefaultMokiContract:    {Volume: 1000, Floor: 20, Supply: 5000, Owners: 900, Listings: 100},
			models.DefaultBoosterContract: {Volume: 200, Floor: 4, Supply: 10000, Owners: 1500, Listings: 40},
		},
		furCounts:  map[string]int{"Rainbow": 2, "Gold": 5, "Spirit": 10, "Shadow": 8},
		traitFloor: map[string]float64{"Spirit": 150, "Gold": 400, "Rainbow": 900, "1 of 1": 0},
		activities: map[models.ActivityType][]models.Activity{
			models.ActivitySale: {{ID: "1", Price: 21, Type: models.ActivitySale}},
		},
	}
}

func TestDashboard(t *testing.T) {
	market := newFakeMarket()
	tokens := &fakeTokens{price: models.RonPrice{USDPrice: 2, Change24h: 1.5}}
	svc := NewDashboardService(market, tokens, models.DefaultContracts(), "", NewMemoryCache(16))

	data, err := svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2.0, data.RonPrice)
	assert.Equal(t, 20.0, data.Moki.Floor)
	assert.Equal(t, 40.0, data.Moki.FloorUSD)
	assert.Equal(t, 2000.0, data.Moki.VolumeUSD)
	assert.Equal(t, 8.0, data.Booster.FloorUSD)

	require.Len(t, data.Moki.ListingsByFur, 5)
	assert.Equal(t, models.FurListing{Fur: "Common", Count: 75, Color: "#a1a1aa"}, data.Moki.ListingsByFur[0])
	furs := []string{}
	for _, l := range data.Moki.ListingsByFur {
		furs = append(furs, l.Fur)
	}
	assert.Equal(t, []string{"Common", "Rainbow", "Gold", "Spirit", "Shadow"}, furs)
	assert.Empty(t, data.Booster.ListingsByFur)

	require.Len(t, data.Moki.Activity.Sales, 1)
	assert.NotNil(t, data.Moki.Activity.Listings)
	// A failed activity slot is empty, not missing
	assert.NotNil(t, data.Moki.Activity.Transfers)
	assert.Empty(t, data.Moki.Activity.Transfers)
}

func TestDashboard_FailedSlotsAreZero(t *testing.T) {
	market := newFakeMarket()
	market.statsErr = map[string]error{models.DefaultBoosterContract: errors.New("502")}
	market.furErr = map[string]error{"Gold": errors.New("429")}
	tokens := &fakeTokens{err: errors.New("moralis down")}
	svc := NewDashboardService(market, tokens, models.DefaultContracts(), "", NewMemoryCache(16))

	data, err := svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Zero(t, data.RonPrice)
	assert.Zero(t, data.Moki.FloorUSD)
	assert.Equal(t, models.CollectionStats{}, data.Booster.CollectionStats)

	// Gold counted as 0 makes Common absorb its listings
	assert.Equal(t, 80, data.Moki.ListingsByFur[0].Count)
	assert.Equal(t, 0, data.Moki.ListingsByFur[2].Count)
}

func TestDashboard_Cached(t *testing.T) {
	market := newFakeMarket()
	svc := NewDashboardService(market, nil, models.DefaultContracts(), "", NewMemoryCache(16))

	_, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	_, err = svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, market.statsCalls)
}

func TestFurBreakdown(t *testing.T) {
	tests := []struct {
		name   string
		total  int
		counts []int
		common int
	}{
		{"specials below total", 100, []int{1, 2, 3, 4}, 90},
		{"specials exceed total", 5, []int{3, 3, 0, 0}, 0},
		{"no listings", 0, []int{0, 0, 0, 0}, 0},
		{"missing counts", 10, nil, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := furBreakdown(tt.total, tt.counts)
			require.Len(t, got, len(models.SpecialFurs)+1)
			assert.Equal(t, models.FurCommon, got[0].Fur)
			assert.Equal(t, tt.common, got[0].Count)
			for i, fur := range models.SpecialFurs {
				assert.Equal(t, fur, got[i+1].Fur)
				assert.Equal(t, models.FurColor(fur), got[i+1].Color)
			}
		})
	}
}

func TestTraitFloors(t *testing.T) {
	svc := NewDashboardService(newFakeMarket(), nil, models.DefaultContracts(), "", NewMemoryCache(16))

	floors, err := svc.TraitFloors(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.TraitFloors{
		"Common":  0,
		"Spirit":  150,
		"Shadow":  0, // lookup failed
		"Gold":    400,
		"Rainbow": 900,
		"1 of 1":  0,
	}, floors)
}

func TestRonPrice_Cached(t *testing.T) {
	tokens := &fakeTokens{price: models.RonPrice{USDPrice: 0.5}}
	svc := NewDashboardService(newFakeMarket(), tokens, models.DefaultContracts(), "", NewMemoryCache(16))

	for i := 0; i < 3; i++ {
		price, err := svc.RonPrice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0.5, price.USDPrice)
	}
	assert.Equal(t, 1, tokens.calls)

	disabled := NewDashboardService(newFakeMarket(), nil, models.DefaultContracts(), "", nil)
	_, err := disabled.RonPrice(context.Background())
	assert.ErrorIs(t, err, ErrMoralisDisabled)
}

func TestTradesAndOffers_UnknownCollection(t *testing.T) {
	svc := NewDashboardService(newFakeMarket(), &fakeTokens{}, models.DefaultContracts(), "", nil)

	_, err := svc.Trades(context.Background(), models.CollectionID("nope"))
	assert.ErrorIs(t, err, ErrUnknownCollection)

	_, err = svc.BestOffer(context.Background(), models.CollectionID("nope"), "1")
	assert.ErrorIs(t, err, ErrUnknownCollection)

	trades, err := svc.Trades(context.Background(), models.CollectionMoki)
	require.NoError(t, err)
	assert.NotNil(t, trades)
	assert.Empty(t, trades)
}

func TestFloor(t *testing.T) {
	svc := NewDashboardService(newFakeMarket(), nil, models.DefaultContracts(), "", nil)

	floor, err := svc.Floor(context.Background(), models.CollectionBooster)
	require.NoError(t, err)
	assert.Equal(t, 4.0, floor)
}
