package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/moki-tracker/internal/services"
)

// FloorWorker polls marketplace floors in the background
type FloorWorker interface {
	GetStatus() services.FloorStatus
	TriggerRefresh() bool
}

type WorkerHandler struct {
	floor FloorWorker
}

func NewWorkerHandler(floor FloorWorker) *WorkerHandler {
	return &WorkerHandler{floor: floor}
}

// GetFloorStatus returns the floor worker's last run and daily counters
func (h *WorkerHandler) GetFloorStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.floor.GetStatus())
}

// RefreshFloors wakes the floor worker early
func (h *WorkerHandler) RefreshFloors(c *gin.Context) {
	queued := h.floor.TriggerRefresh()
	c.JSON(http.StatusAccepted, gin.H{
		"queued":  queued,
		"message": "floor refresh requested",
	})
}
