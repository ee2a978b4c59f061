package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Conceptual-Machines/magda-markov/internal/services"
	"github.com/gin-gonic/gin"
)

const composeTimeout = 30 * time.Second

type ComposeHandler struct {
	composer *services.Composer
}

func NewComposeHandler(composer *services.Composer) *ComposeHandler {
	return &ComposeHandler{composer: composer}
}

// Compose handles POST /api/v1/compose
func (h *ComposeHandler) Compose(c *gin.Context) {
	var req services.ComposeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), composeTimeout)
	defer cancel()

	result, err := h.composer.Compose(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
