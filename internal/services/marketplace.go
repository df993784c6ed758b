package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/codyseavey/moki-tracker/internal/metrics"
	"github.com/codyseavey/moki-tracker/internal/models"
)

const (
	marketplaceDefaultEndpoint = "https://marketplace-graphql.skymavis.com/graphql"
	marketplaceDefaultTimeout  = 15 * time.Second

	// The public endpoint throttles aggressively, stay below ~10 rps
	marketplaceRequestsPerSecond = 8

	// traitFloorSampleSize is how many cheapest tokens are scanned for one with an order
	traitFloorSampleSize = 5
)

// MarketplaceService talks to the Ronin marketplace GraphQL API
type MarketplaceService struct {
	client   *http.Client
	endpoint string
	apiKey   string
	limiter  *rate.Limiter
}

// graphQLRequest is the POST body for a GraphQL call
type graphQLRequest struct {
	OperationName string                 `json:"operationName,omitempty"`
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
}

// searchCriteria filters tokens by a trait
type searchCriteria struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// NewMarketplaceService creates a marketplace client. apiKey is optional.
func NewMarketplaceService(endpoint, apiKey string) *MarketplaceService {
	if endpoint == "" {
		endpoint = marketplaceDefaultEndpoint
	}
	return &MarketplaceService{
		client: &http.Client{
			Timeout: marketplaceDefaultTimeout,
		},
		endpoint: endpoint,
		apiKey:   apiKey,
		limiter:  rate.NewLimiter(rate.Limit(marketplaceRequestsPerSecond), marketplaceRequestsPerSecond),
	}
}

// post sends one GraphQL operation and returns its "data" object
func (s *MarketplaceService) post(ctx context.Context, operation, query string, variables map[string]interface{}) (gjson.Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(graphQLRequest{
		OperationName: operation,
		Query:         query,
		Variables:     variables,
	})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	setBrowserHeaders(req)
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.UpstreamLatency.WithLabelValues("marketplace").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("marketplace", "error").Inc()
		return gjson.Result{}, fmt.Errorf("failed to call marketplace: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequestsTotal.WithLabelValues("marketplace", "error").Inc()
		return gjson.Result{}, fmt.Errorf("marketplace %s error: status %d", operation, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("marketplace", "error").Inc()
		return gjson.Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	root := gjson.ParseBytes(body)
	data := root.Get("data")
	if errs := root.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 && data.Type == gjson.Null {
		metrics.UpstreamRequestsTotal.WithLabelValues("marketplace", "error").Inc()
		return gjson.Result{}, fmt.Errorf("marketplace %s error: %s", operation, errs.Get("0.message").String())
	}
	if !data.Exists() {
		metrics.UpstreamRequestsTotal.WithLabelValues("marketplace", "error").Inc()
		return gjson.Result{}, fmt.Errorf("marketplace %s: response has no data", operation)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("marketplace", "ok").Inc()
	return data, nil
}

// setBrowserHeaders mimics the marketplace web app; requests without them get rejected
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36")
	req.Header.Set("Origin", "https://marketplace.roninchain.com")
	req.Header.Set("Referer", "https://marketplace.roninchain.com/")
	req.Header.Set("sec-fetch-dest", "empty")
	req.Header.Set("sec-fetch-mode", "cors")
	req.Header.Set("sec-fetch-site", "cross-site")
}

// TokenStats returns collection level statistics. Volume is already in RON,
// the floor arrives in wei.
func (s *MarketplaceService) TokenStats(ctx context.Context, contract string) (models.CollectionStats, error) {
	data, err := s.post(ctx, "GetTokenData", queryTokenData, map[string]interface{}{
		"tokenAddress": contract,
	})
	if err != nil {
		return models.CollectionStats{}, err
	}

	t := data.Get("tokenData")
	stats := models.CollectionStats{
		Floor:    jsonWei(t.Get("minPrice")),
		Supply:   int(t.Get("totalItems").Int()),
		Owners:   int(t.Get("totalOwners").Int()),
		Listings: int(t.Get("totalListing").Int()),
	}
	if volume, ok := jsonAmount(t.Get("volumeAllTime")); ok {
		stats.Volume = volume
	}
	return stats, nil
}

// ListingCount returns how many tokens with trait=value are listed for sale
func (s *MarketplaceService) ListingCount(ctx context.Context, contract, trait, value string) (int, error) {
	data, err := s.post(ctx, "GetERC721TokensCount", queryTokenCount, map[string]interface{}{
		"tokenAddress":  contract,
		"auctionType":   "Sale",
		"from":          0,
		"size":          0,
		"sort":          "PriceAsc",
		"criteria":      []searchCriteria{{Name: trait, Values: []string{value}}},
		"rangeCriteria": []interface{}{},
	})
	if err != nil {
		return 0, err
	}
	return int(data.Get("erc721Tokens.total").Int()), nil
}

// TraitFloor returns the cheapest listed price in RON for trait=value, or 0
// when none of the cheapest tokens carries an order
func (s *MarketplaceService) TraitFloor(ctx context.Context, contract, trait, value string) (float64, error) {
	data, err := s.post(ctx, "GetERC721TokensList", queryTokenFloor, map[string]interface{}{
		"tokenAddress":  contract,
		"auctionType":   "All",
		"from":          0,
		"size":          traitFloorSampleSize,
		"sort":          "PriceAsc",
		"criteria":      []searchCriteria{{Name: trait, Values: []string{value}}},
		"rangeCriteria": []interface{}{},
	})
	if err != nil {
		return 0, err
	}

	for _, token := range data.Get("erc721Tokens.results").Array() {
		price := token.Get("order.currentPrice")
		if price.Exists() && price.String() != "" {
			return jsonWei(price), nil
		}
	}
	return 0, nil
}

// Activities returns the latest events of one kind for a collection
func (s *MarketplaceService) Activities(ctx context.Context, contract string, kind models.ActivityType, size int) ([]models.Activity, error) {
	data, err := s.post(ctx, "GetCollectionActivities", queryActivities, map[string]interface{}{
		"tokenAddress":  contract,
		"activityTypes": []string{string(kind)},
		"size":          size,
	})
	if err != nil {
		return nil, err
	}

	results := data.Get("activities.results").Array()
	activities := make([]models.Activity, 0, len(results))
	for _, item := range results {
		activities = append(activities, parseActivity(item, kind))
	}
	return activities, nil
}

func parseActivity(item gjson.Result, kind models.ActivityType) models.Activity {
	token := item.Get("asset.token")

	a := models.Activity{
		ID:    firstNonEmpty(token.Get("erc721TokenId").String(), token.Get("erc1155TokenId").String(), "?"),
		Name:  firstNonEmpty(token.Get("erc721Name").String(), token.Get("erc1155Name").String(), "Unknown"),
		Image: firstNonEmpty(token.Get("erc721CdnImage").String(), token.Get("erc721Image").String(), token.Get("erc1155CdnImage").String()),
		Type:  models.ActivityType(firstNonEmpty(item.Get("activityType").String(), string(kind))),
		From:  firstNonEmpty(item.Get("fromProfile.name").String(), addressPrefix(item.Get("from").String()), "?"),
		To:    firstNonEmpty(item.Get("toProfile.name").String(), addressPrefix(item.Get("to").String()), "?"),
	}

	// metadata is an untyped JSON scalar; some events send it encoded as a string
	metadata := item.Get("metadata")
	if metadata.Type == gjson.String && gjson.Valid(metadata.Str) {
		metadata = gjson.Parse(metadata.Str)
	}
	price := metadata.Get("price")
	if !price.Exists() || price.String() == "" {
		price = metadata.Get("item_price")
	}
	a.Price = jsonWei(price)

	if ts := item.Get("timestamp").Int(); ts > 0 {
		a.Timestamp = ts
		t := time.Unix(ts, 0).UTC()
		a.Time = &t
	}
	return a
}

func addressPrefix(addr string) string {
	if len(addr) > 6 {
		return addr[:6]
	}
	return addr
}

// BestOffer returns the best standing bid for a token. A trait or collection
// offer wins when it is at least the direct offer; nil means no offers.
func (s *MarketplaceService) BestOffer(ctx context.Context, contract, tokenID string) (*models.Offer, error) {
	data, err := s.post(ctx, "GetERC721TopOffer", queryTopOffer, map[string]interface{}{
		"tokenAddress": contract,
		"tokenId":      tokenID,
	})
	if err != nil {
		return nil, err
	}

	traitPrice := jsonWei(data.Get("bestCollectionAndTraitOffersForNft.itemPrice"))
	directPrice := jsonWei(data.Get("erc721Token.highestOffer.currentPrice"))
	return pickBestOffer(traitPrice, directPrice), nil
}

func pickBestOffer(traitPrice, directPrice float64) *models.Offer {
	switch {
	case traitPrice >= directPrice && traitPrice > 0:
		return &models.Offer{Price: traitPrice, Token: "RON", Kind: "trait"}
	case directPrice > 0:
		return &models.Offer{Price: directPrice, Token: "RON", Kind: "direct"}
	default:
		return nil
	}
}
