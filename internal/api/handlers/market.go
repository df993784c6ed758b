package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	applog "github.com/codyseavey/moki-tracker/internal/logger"
	"github.com/codyseavey/moki-tracker/internal/models"
	"github.com/codyseavey/moki-tracker/internal/services"
)

// MarketService is the read side of the collection dashboard
type MarketService interface {
	Dashboard(ctx context.Context) (*models.DashboardData, error)
	TraitFloors(ctx context.Context) (models.TraitFloors, error)
	RonPrice(ctx context.Context) (models.RonPrice, error)
	Trades(ctx context.Context, id models.CollectionID) ([]models.Trade, error)
	BestOffer(ctx context.Context, id models.CollectionID, tokenID string) (*models.Offer, error)
}

type MarketHandler struct {
	market MarketService
}

func NewMarketHandler(market MarketService) *MarketHandler {
	return &MarketHandler{market: market}
}

// GetDashboard returns stats, fur breakdown and activity for both collections
func (h *MarketHandler) GetDashboard(c *gin.Context) {
	data, err := h.market.Dashboard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *MarketHandler) GetTraitFloors(c *gin.Context) {
	floors, err := h.market.TraitFloors(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, floors)
}

func (h *MarketHandler) GetRonPrice(c *gin.Context) {
	price, err := h.market.RonPrice(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrMoralisDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price data not configured"})
			return
		}
		applog.FromContext(c.Request.Context()).Warnf("Market handler: RON price failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch RON price"})
		return
	}
	c.JSON(http.StatusOK, price)
}

// GetTrades returns recent trades for one collection
func (h *MarketHandler) GetTrades(c *gin.Context) {
	id, ok := collectionParam(c)
	if !ok {
		return
	}

	trades, err := h.market.Trades(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

// GetBestOffer returns the best offer on a token, 404 when nobody has bid
func (h *MarketHandler) GetBestOffer(c *gin.Context) {
	id, ok := collectionParam(c)
	if !ok {
		return
	}
	tokenID := strings.TrimSpace(c.Param("tokenId"))
	if tokenID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token id is required"})
		return
	}

	offer, err := h.market.BestOffer(c.Request.Context(), id, tokenID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if offer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no offers"})
		return
	}
	c.JSON(http.StatusOK, offer)
}

func collectionParam(c *gin.Context) (models.CollectionID, bool) {
	id, ok := models.ParseCollectionID(c.Param("collection"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown collection"})
		return "", false
	}
	return id, true
}

// writeServiceError maps service sentinels to status codes
func writeServiceError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, models.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
	case errors.Is(err, models.ErrUnknownTimeWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnknownCollection):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown collection"})
	case errors.Is(err, services.ErrMoralisDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
