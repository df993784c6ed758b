package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/moki-tracker/internal/models"
	"github.com/codyseavey/moki-tracker/internal/services"
)

// PortfolioService values a wallet's holdings
type PortfolioService interface {
	NFTs(ctx context.Context, wallet string) ([]models.WalletNFT, error)
	Summary(ctx context.Context, wallet string) (*models.PortfolioSummary, error)
	History(ctx context.Context, wallet string, window models.TimeWindow) (*models.PortfolioHistoryResponse, error)
}

type PortfolioHandler struct {
	portfolio PortfolioService
}

func NewPortfolioHandler(portfolio PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio}
}

// walletParam validates :wallet up front so bad input never costs an upstream call
func walletParam(c *gin.Context) (string, bool) {
	wallet, err := models.NormalizeAddress(c.Param("wallet"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
		return "", false
	}
	return wallet, true
}

func (h *PortfolioHandler) GetNFTs(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}

	nfts, err := h.portfolio.NFTs(c.Request.Context(), wallet)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if nfts == nil {
		nfts = []models.WalletNFT{}
	}
	c.JSON(http.StatusOK, nfts)
}

func (h *PortfolioHandler) GetSummary(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}

	summary, err := h.portfolio.Summary(c.Request.Context(), wallet)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetHistory returns the valuation chart for ?range= (24h, 7d, 30d, 90d, 1y, all)
func (h *PortfolioHandler) GetHistory(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	window, err := models.ParseTimeWindow(c.Query("range"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown range, expected one of 24h, 7d, 30d, 90d, 1y, all"})
		return
	}

	history, err := h.portfolio.History(c.Request.Context(), wallet, window)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// GetChart renders the valuation series as a PNG sparkline (?range=&w=&h=)
func (h *PortfolioHandler) GetChart(c *gin.Context) {
	wallet, ok := walletParam(c)
	if !ok {
		return
	}
	window, err := models.ParseTimeWindow(c.Query("range"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown range, expected one of 24h, 7d, 30d, 90d, 1y, all"})
		return
	}
	width, _ := strconv.Atoi(c.Query("w"))
	height, _ := strconv.Atoi(c.Query("h"))

	history, err := h.portfolio.History(c.Request.Context(), wallet, window)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	img, err := services.SparklinePNG(history.Points, width, height)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "image/png", img)
}
