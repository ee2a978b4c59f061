package handlers

import (
	"errors"
	"net/http"

	"github.com/Conceptual-Machines/magda-markov/internal/logger"
	"github.com/Conceptual-Machines/magda-markov/internal/markov"
	"github.com/Conceptual-Machines/magda-markov/internal/music"
	"github.com/Conceptual-Machines/magda-markov/internal/services"
	"github.com/gin-gonic/gin"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrChainNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, markov.ErrNotFitted),
		errors.Is(err, markov.ErrNoValidStart):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, markov.ErrEmptyStateSpace),
		errors.Is(err, markov.ErrUnknownSymbol),
		errors.Is(err, markov.ErrInvalidStart),
		errors.Is(err, markov.ErrInvalidLength),
		errors.Is(err, markov.ErrInvalidOrder),
		errors.Is(err, music.ErrInvalidNote):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{
		"error":      err.Error(),
		"request_id": c.GetString("request_id"),
	}

	var symErr *markov.SymbolError
	if errors.As(err, &symErr) {
		body["symbol"] = symErr.Symbol
		body["sequence"] = symErr.Sequence
		body["position"] = symErr.Position
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", err, logger.WithContext(c))
		body["error"] = "Internal server error"
	}
	c.JSON(status, body)
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      err.Error(),
		"request_id": c.GetString("request_id"),
	})
}
