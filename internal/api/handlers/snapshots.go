package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	applog "github.com/codyseavey/moki-tracker/internal/logger"
	"github.com/codyseavey/moki-tracker/internal/models"
	"github.com/codyseavey/moki-tracker/internal/services"
)

// SnapshotService stores one portfolio value per day
type SnapshotService interface {
	GetHistory(period string) ([]models.PortfolioValueSnapshot, error)
	TakeSnapshot(ctx context.Context) error
	GetLastSnapshot() *models.PortfolioValueSnapshot
}

type SnapshotHandler struct {
	snapshots SnapshotService
}

func NewSnapshotHandler(snapshots SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots}
}

// GetValueHistory returns portfolio value snapshots for charting
func (h *SnapshotHandler) GetValueHistory(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot service not available"})
		return
	}

	period := c.DefaultQuery("period", "month")
	snapshots, err := h.snapshots.GetHistory(period)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.ValueHistoryResponse{
		Snapshots: snapshots,
		Period:    period,
	})
}

// TakeSnapshot forces today's snapshot to be (re)recorded
func (h *SnapshotHandler) TakeSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot service not available"})
		return
	}

	if err := h.snapshots.TakeSnapshot(c.Request.Context()); err != nil {
		if errors.Is(err, services.ErrNoWallet) {
			c.JSON(http.StatusConflict, gin.H{"error": "no wallet configured"})
			return
		}
		applog.FromContext(c.Request.Context()).Errorf("Snapshot handler: snapshot failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, h.snapshots.GetLastSnapshot())
}
