package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	applog "github.com/codyseavey/moki-tracker/internal/logger"
	"github.com/codyseavey/moki-tracker/internal/metrics"
	"github.com/codyseavey/moki-tracker/internal/models"
)

const (
	moralisDefaultBaseURL = "https://deep-index.moralis.io/api/v2.2"
	moralisDefaultTimeout = 10 * time.Second
	moralisDefaultChain   = "ronin"

	// moralisRequestsPerSecond keeps us well under the free tier burst limit
	moralisRequestsPerSecond = 5

	// moralisMaxPages bounds cursor pagination of wallet NFTs
	moralisMaxPages = 50
)

var (
	// ErrMoralisDisabled is returned when no API key is configured
	ErrMoralisDisabled = errors.New("moralis API key not configured")

	// ErrQuotaExceeded is returned when the daily request budget is spent
	ErrQuotaExceeded = errors.New("moralis daily rate limit exceeded")
)

// MoralisService handles API calls to the Moralis NFT data API
type MoralisService struct {
	client     *http.Client
	apiKey     string
	baseURL    string
	chain      string
	dailyLimit int
	limiter    *rate.Limiter

	// Daily quota
	mu             sync.Mutex
	requestsToday  int
	lastRequestDay time.Time
}

// NewMoralisService creates a new Moralis API service
func NewMoralisService(apiKey, baseURL string, dailyLimit int) *MoralisService {
	if dailyLimit <= 0 {
		dailyLimit = 1000
	}
	if baseURL == "" {
		baseURL = moralisDefaultBaseURL
	}

	return &MoralisService{
		client: &http.Client{
			Timeout: moralisDefaultTimeout,
		},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		chain:      moralisDefaultChain,
		dailyLimit: dailyLimit,
		limiter:    rate.NewLimiter(rate.Limit(moralisRequestsPerSecond), moralisRequestsPerSecond),
	}
}

// WithChain overrides the chain name sent with every request
func (s *MoralisService) WithChain(chain string) *MoralisService {
	if chain != "" {
		s.chain = chain
	}
	return s
}

// IsEnabled returns whether an API key is configured
func (s *MoralisService) IsEnabled() bool {
	return s.apiKey != ""
}

// checkDailyLimit reserves one request from today's budget
func (s *MoralisService) checkDailyLimit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	// Reset counter if new day
	if s.lastRequestDay.Before(today) {
		s.requestsToday = 0
		s.lastRequestDay = today
	}

	if s.requestsToday >= s.dailyLimit {
		return false
	}

	s.requestsToday++
	return true
}

// GetRequestsRemaining returns the number of requests remaining today
func (s *MoralisService) GetRequestsRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if s.lastRequestDay.Before(today) {
		return s.dailyLimit
	}

	remaining := s.dailyLimit - s.requestsToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetDailyLimit returns the configured daily limit
func (s *MoralisService) GetDailyLimit() int {
	return s.dailyLimit
}

// get performs an authenticated GET and returns the raw body
func (s *MoralisService) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if !s.IsEnabled() {
		return nil, ErrMoralisDisabled
	}
	if !s.checkDailyLimit() {
		metrics.UpstreamRequestsTotal.WithLabelValues("moralis", "quota").Inc()
		return nil, ErrQuotaExceeded
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := s.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.UpstreamLatency.WithLabelValues("moralis").Observe(time.Since(start).Seconds())
	metrics.MoralisQuotaRemaining.Set(float64(s.GetRequestsRemaining()))
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("moralis", "error").Inc()
		return nil, fmt.Errorf("failed to call moralis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequestsTotal.WithLabelValues("moralis", "error").Inc()
		return nil, fmt.Errorf("moralis API error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("moralis", "error").Inc()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("moralis", "ok").Inc()
	return body, nil
}

// FloorPriceHistory fetches a collection's floor price history, oldest first
func (s *MoralisService) FloorPriceHistory(ctx context.Context, contract string, window models.TimeWindow) ([]models.PricePoint, error) {
	params := url.Values{}
	params.Set("chain", s.chain)
	params.Set("interval", window.MoralisInterval())

	body, err := s.get(ctx, "/nft/"+contract+"/floor-price/historical", params)
	if err != nil {
		return nil, err
	}

	points, err := decodeFloorPriceHistory(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode floor price history: %w", err)
	}
	return points, nil
}

// WalletNFTs fetches every tracked NFT held by wallet, following the cursor.
// On a mid-pagination error the pages fetched so far are returned with the error.
func (s *MoralisService) WalletNFTs(ctx context.Context, wallet string, contracts models.Contracts) ([]models.WalletNFT, error) {
	params := url.Values{}
	params.Set("chain", s.chain)
	params.Set("format", "decimal")
	params.Set("media_items", "true")
	params.Set("include_prices", "true")
	for i, id := range models.AllCollections() {
		if addr, ok := contracts[id]; ok {
			params.Set(fmt.Sprintf("token_addresses[%d]", i), addr)
		}
	}

	var all []models.WalletNFT
	cursor := ""
	for page := 0; page < moralisMaxPages; page++ {
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		body, err := s.get(ctx, "/"+wallet+"/nft", params)
		if err != nil {
			return all, err
		}

		root := gjson.ParseBytes(body)
		for _, item := range root.Get("result").Array() {
			all = append(all, parseWalletNFT(item, contracts))
		}

		cursor = root.Get("cursor").String()
		if cursor == "" {
			return all, nil
		}
	}

	applog.L().Warnf("Moralis: wallet %s exceeded %d pages, truncating", wallet, moralisMaxPages)
	return all, nil
}

// parseWalletNFT reads one wallet NFT item. metadata arrives either as a
// JSON-encoded string or as an object.
func parseWalletNFT(item gjson.Result, contracts models.Contracts) models.WalletNFT {
	metadata := item.Get("metadata")
	if metadata.Type == gjson.String && gjson.Valid(metadata.Str) {
		metadata = gjson.Parse(metadata.Str)
	}
	normalized := item.Get("normalized_metadata")

	tokenID := item.Get("token_id").String()
	contract := item.Get("token_address").String()

	nft := models.WalletNFT{
		TokenID:         tokenID,
		Name:            firstNonEmpty(normalized.Get("name").String(), metadata.Get("name").String(), "#"+tokenID),
		Description:     firstNonEmpty(normalized.Get("description").String(), metadata.Get("description").String()),
		Image:           firstNonEmpty(normalized.Get("image").String(), metadata.Get("image").String(), item.Get("collection_logo").String()),
		Type:            models.CollectionMoki.DisplayType(),
		RarityLabel:     firstNonEmpty(item.Get("rarity_label").String(), string(models.RarityCommon)),
		RarityRank:      999999,
		ContractAddress: contract,
		Color:           "#9ca3af",
	}
	nft.Rarity = models.RarityFromLabel(item.Get("rarity_label").String())
	if rank := item.Get("rarity_rank"); rank.Exists() && rank.Int() > 0 {
		nft.RarityRank = int(rank.Int())
	}
	if floor, ok := jsonAmount(item.Get("floor_price")); ok {
		nft.FloorPrice = floor
	}
	if last, ok := jsonAmount(item.Get("last_sale.price")); ok {
		nft.LastSale = last
	}

	if id, ok := contracts.CollectionFor(contract); ok {
		nft.Collection = id
		nft.Type = id.DisplayType()
		nft.Color = id.Color()
	}

	attrs := metadata.Get("attributes")
	if !attrs.IsArray() {
		attrs = normalized.Get("attributes")
	}
	for _, a := range attrs.Array() {
		nft.Attributes = append(nft.Attributes, models.NFTAttribute{
			Key:        firstNonEmpty(a.Get("key").String(), a.Get("trait_type").String()),
			Value:      a.Get("value").String(),
			Count:      int(a.Get("count").Int()),
			Percentage: a.Get("percentage").Float(),
		})
	}
	if nft.Attributes == nil {
		nft.Attributes = []models.NFTAttribute{}
	}
	return nft
}

// CollectionTrades fetches the latest trades for a collection, oldest first
func (s *MoralisService) CollectionTrades(ctx context.Context, contract string) ([]models.Trade, error) {
	params := url.Values{}
	params.Set("chain", s.chain)
	params.Set("marketplace", "opensea")
	params.Set("limit", "25")

	body, err := s.get(ctx, "/nft/"+contract+"/trades", params)
	if err != nil {
		return nil, err
	}

	result := gjson.GetBytes(body, "result")
	if !result.IsArray() {
		return []models.Trade{}, nil
	}

	trades := make([]models.Trade, 0, len(result.Array()))
	for _, item := range result.Array() {
		ts, ok := parseTimestamp(item.Get("block_timestamp"))
		if !ok {
			continue
		}
		price, ok := jsonAmount(item.Get("price_formatted"))
		if !ok {
			price = jsonWei(item.Get("price"))
		}
		trades = append(trades, models.Trade{Price: price, Timestamp: ts})
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp.Before(trades[j].Timestamp)
	})
	return trades, nil
}

// RonPrice fetches the WRON token price in USD
func (s *MoralisService) RonPrice(ctx context.Context, wronContract string) (models.RonPrice, error) {
	params := url.Values{}
	params.Set("chain", s.chain)

	body, err := s.get(ctx, "/erc20/"+wronContract+"/price", params)
	if err != nil {
		return models.RonPrice{}, err
	}

	root := gjson.ParseBytes(body)
	price := models.RonPrice{}
	if usd, ok := jsonAmount(root.Get("usdPrice")); ok {
		price.USDPrice = usd
	}
	if change, ok := jsonAmount(root.Get("24hrPercentChange")); ok {
		price.Change24h = change
	}
	return price, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
