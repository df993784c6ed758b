package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/moki-tracker/internal/models"
	"github.com/codyseavey/moki-tracker/internal/services"
)

const testWallet = "0x61759fb5255532f8f977d0a51b7037651becac74"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMarket struct {
	ronErr    error
	offer     *models.Offer
	offerErr  error
	lastTrade models.CollectionID
}

func (f *fakeMarket) Dashboard(_ context.Context) (*models.DashboardData, error) {
	return &models.DashboardData{RonPrice: 0.5}, nil
}

func (f *fakeMarket) TraitFloors(_ context.Context) (models.TraitFloors, error) {
	return models.TraitFloors{models.FurCommon: 0, "Gold": 120}, nil
}

func (f *fakeMarket) RonPrice(_ context.Context) (models.RonPrice, error) {
	return models.RonPrice{USDPrice: 0.5, Change24h: -2}, f.ronErr
}

func (f *fakeMarket) Trades(_ context.Context, id models.CollectionID) ([]models.Trade, error) {
	f.lastTrade = id
	return []models.Trade{{Price: 10, Timestamp: time.Unix(1700000000, 0).UTC()}}, nil
}

func (f *fakeMarket) BestOffer(_ context.Context, _ models.CollectionID, _ string) (*models.Offer, error) {
	return f.offer, f.offerErr
}

type fakePortfolio struct {
	nftsErr    error
	lastWallet string
	lastWindow models.TimeWindow
}

func (f *fakePortfolio) NFTs(_ context.Context, wallet string) ([]models.WalletNFT, error) {
	f.lastWallet = wallet
	return nil, f.nftsErr
}

func (f *fakePortfolio) Summary(_ context.Context, wallet string) (*models.PortfolioSummary, error) {
	f.lastWallet = wallet
	return &models.PortfolioSummary{Wallet: wallet, TotalValueRON: 42}, nil
}

func (f *fakePortfolio) History(_ context.Context, wallet string, window models.TimeWindow) (*models.PortfolioHistoryResponse, error) {
	f.lastWallet = wallet
	f.lastWindow = window
	return &models.PortfolioHistoryResponse{Wallet: wallet, Range: window, Points: []models.ValuationPoint{}}, nil
}

type fakeSnapshots struct {
	err      error
	period   string
	taken    int
	snapshot *models.PortfolioValueSnapshot
}

func (f *fakeSnapshots) GetHistory(period string) ([]models.PortfolioValueSnapshot, error) {
	f.period = period
	return []models.PortfolioValueSnapshot{}, nil
}

func (f *fakeSnapshots) TakeSnapshot(_ context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.taken++
	return nil
}

func (f *fakeSnapshots) GetLastSnapshot() *models.PortfolioValueSnapshot {
	return f.snapshot
}

type fakeWorker struct {
	triggered int
}

func (f *fakeWorker) GetStatus() services.FloorStatus {
	return services.FloorStatus{PollInterval: "15m0s", ObservationsToday: 4}
}

func (f *fakeWorker) TriggerRefresh() bool {
	f.triggered++
	return f.triggered == 1
}

func newTestRouter(market *fakeMarket, portfolio *fakePortfolio, snapshots *fakeSnapshots, worker *fakeWorker) *gin.Engine {
	r := gin.New()

	mh := NewMarketHandler(market)
	r.GET("/api/market/ron-price", mh.GetRonPrice)
	r.GET("/api/market/trait-floors", mh.GetTraitFloors)
	r.GET("/api/dashboard", mh.GetDashboard)
	r.GET("/api/collections/:collection/trades", mh.GetTrades)
	r.GET("/api/collections/:collection/offers/:tokenId", mh.GetBestOffer)

	ph := NewPortfolioHandler(portfolio)
	r.GET("/api/portfolio/:wallet/nfts", ph.GetNFTs)
	r.GET("/api/portfolio/:wallet/summary", ph.GetSummary)
	r.GET("/api/portfolio/:wallet/history", ph.GetHistory)
	r.GET("/api/portfolio/:wallet/chart.png", ph.GetChart)

	sh := NewSnapshotHandler(snapshots)
	r.GET("/api/portfolio/snapshots", sh.GetValueHistory)
	r.POST("/api/portfolio/snapshots", sh.TakeSnapshot)

	wh := NewWorkerHandler(worker)
	r.GET("/api/workers/floor", wh.GetFloorStatus)
	r.POST("/api/workers/floor/refresh", wh.RefreshFloors)
	return r
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestMarketHandlers(t *testing.T) {
	market := &fakeMarket{}
	r := newTestRouter(market, &fakePortfolio{}, &fakeSnapshots{}, &fakeWorker{})

	w := serve(r, http.MethodGet, "/api/market/ron-price")
	require.Equal(t, http.StatusOK, w.Code)
	var price models.RonPrice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &price))
	assert.Equal(t, 0.5, price.USDPrice)

	w = serve(r, http.MethodGet, "/api/market/trait-floors")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"Common":0,"Gold":120}`, w.Body.String())

	w = serve(r, http.MethodGet, "/api/dashboard")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/api/collections/booster/trades")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CollectionBooster, market.lastTrade)
}

func TestGetRonPrice_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"disabled", services.ErrMoralisDisabled, http.StatusServiceUnavailable},
		{"upstream", errors.New("timeout"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeMarket{ronErr: tt.err}, &fakePortfolio{}, &fakeSnapshots{}, &fakeWorker{})
			w := serve(r, http.MethodGet, "/api/market/ron-price")
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestGetBestOffer(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		market *fakeMarket
		status int
	}{
		{"found", "/api/collections/moki/offers/12", &fakeMarket{offer: &models.Offer{Price: 20, Token: "RON", Kind: "direct"}}, http.StatusOK},
		{"no offers", "/api/collections/moki/offers/12", &fakeMarket{}, http.StatusNotFound},
		{"unknown collection", "/api/collections/axie/offers/12", &fakeMarket{}, http.StatusNotFound},
		{"upstream", "/api/collections/moki/offers/12", &fakeMarket{offerErr: errors.New("graphql down")}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(tt.market, &fakePortfolio{}, &fakeSnapshots{}, &fakeWorker{})
			w := serve(r, http.MethodGet, tt.path)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestPortfolioHandlers(t *testing.T) {
	portfolio := &fakePortfolio{}
	r := newTestRouter(&fakeMarket{}, portfolio, &fakeSnapshots{}, &fakeWorker{})

	w := serve(r, http.MethodGet, "/api/portfolio/ronin:"+testWallet[2:]+"/summary")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testWallet, portfolio.lastWallet)

	w = serve(r, http.MethodGet, "/api/portfolio/"+testWallet+"/history?range=7d")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Window7D, portfolio.lastWindow)

	w = serve(r, http.MethodGet, "/api/portfolio/"+testWallet+"/history")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Window24H, portfolio.lastWindow)

	// Empty listings serialize as [] rather than null
	w = serve(r, http.MethodGet, "/api/portfolio/"+testWallet+"/nfts")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestGetChart(t *testing.T) {
	portfolio := &fakePortfolio{}
	r := newTestRouter(&fakeMarket{}, portfolio, &fakeSnapshots{}, &fakeWorker{})

	w := serve(r, http.MethodGet, "/api/portfolio/"+testWallet+"/chart.png?range=30d&w=120&h=40")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, models.Window30D, portfolio.lastWindow)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = serve(r, http.MethodGet, "/api/portfolio/"+testWallet+"/chart.png?range=2w")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPortfolioHandlers_BadInput(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"invalid wallet", "/api/portfolio/not-a-wallet/summary", http.StatusBadRequest},
		{"short wallet", "/api/portfolio/0x1234/history", http.StatusBadRequest},
		{"unknown range", "/api/portfolio/" + testWallet + "/history?range=5m", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portfolio := &fakePortfolio{}
			r := newTestRouter(&fakeMarket{}, portfolio, &fakeSnapshots{}, &fakeWorker{})
			w := serve(r, http.MethodGet, tt.path)
			assert.Equal(t, tt.status, w.Code)
			assert.Empty(t, portfolio.lastWallet, "service must not be called")
		})
	}
}

func TestGetNFTs_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"disabled", services.ErrMoralisDisabled, http.StatusServiceUnavailable},
		{"quota", services.ErrQuotaExceeded, http.StatusTooManyRequests},
		{"upstream", errors.New("boom"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeMarket{}, &fakePortfolio{nftsErr: tt.err}, &fakeSnapshots{}, &fakeWorker{})
			w := serve(r, http.MethodGet, "/api/portfolio/"+testWallet+"/nfts")
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestSnapshotHandlers(t *testing.T) {
	snapshots := &fakeSnapshots{snapshot: &models.PortfolioValueSnapshot{TotalValueRON: 12}}
	r := newTestRouter(&fakeMarket{}, &fakePortfolio{}, snapshots, &fakeWorker{})

	w := serve(r, http.MethodGet, "/api/portfolio/snapshots")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "month", snapshots.period)

	w = serve(r, http.MethodGet, "/api/portfolio/snapshots?period=year")
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ValueHistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "year", resp.Period)

	w = serve(r, http.MethodPost, "/api/portfolio/snapshots")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, snapshots.taken)

	snapshots.err = services.ErrNoWallet
	w = serve(r, http.MethodPost, "/api/portfolio/snapshots")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWorkerHandlers(t *testing.T) {
	worker := &fakeWorker{}
	r := newTestRouter(&fakeMarket{}, &fakePortfolio{}, &fakeSnapshots{}, worker)

	w := serve(r, http.MethodGet, "/api/workers/floor")
	require.Equal(t, http.StatusOK, w.Code)
	var status services.FloorStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 4, status.ObservationsToday)

	w = serve(r, http.MethodPost, "/api/workers/floor/refresh")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"queued":true,"message":"floor refresh requested"}`, w.Body.String())
	assert.Equal(t, 1, worker.triggered)
}
