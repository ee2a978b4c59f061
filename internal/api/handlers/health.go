package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// Pinger is anything whose backing store can be checked
type Pinger interface {
	Ping(ctx context.Context) error
	StoreName() string
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// HealthCheck returns the health status of the API
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	storeStatus := "ok"
	status := "healthy"
	code := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		storeStatus = err.Error()
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"store": gin.H{
			"name":   h.store.StoreName(),
			"status": storeStatus,
		},
	})
}
