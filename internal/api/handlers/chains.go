package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Conceptual-Machines/magda-markov/internal/api/middleware"
	"github.com/Conceptual-Machines/magda-markov/internal/services"
	"github.com/gin-gonic/gin"
)

type ChainHandler struct {
	chains *services.ChainService
}

func NewChainHandler(chains *services.ChainService) *ChainHandler {
	return &ChainHandler{chains: chains}
}

type FitRequest struct {
	Sequences [][]int `json:"sequences" binding:"required"`
	Weighting string  `json:"weighting"`
}

type UpdateRequest struct {
	Sequences [][]int `json:"sequences" binding:"required"`
}

type GenerateResponse struct {
	ChainID  string `json:"chain_id"`
	Sequence []int  `json:"sequence"`
	Length   int    `json:"length"`
}

type ListResponse struct {
	Chains []services.ChainInfo `json:"chains"`
	Count  int                  `json:"count"`
}

func callerFrom(c *gin.Context) services.Caller {
	id, _ := middleware.GetUserID(c)
	role, _ := middleware.GetUserRole(c)
	return services.Caller{ID: id, Role: role}
}

// Create handles POST /api/v1/chains
func (h *ChainHandler) Create(c *gin.Context) {
	var req services.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	info, err := h.chains.Create(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// List handles GET /api/v1/chains
func (h *ChainHandler) List(c *gin.Context) {
	chains, err := h.chains.List(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Chains: chains, Count: len(chains)})
}

// Get handles GET /api/v1/chains/:id
func (h *ChainHandler) Get(c *gin.Context) {
	info, err := h.chains.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Delete handles DELETE /api/v1/chains/:id
func (h *ChainHandler) Delete(c *gin.Context) {
	if err := h.chains.Delete(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Fit handles POST /api/v1/chains/:id/fit
func (h *ChainHandler) Fit(c *gin.Context) {
	var req FitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	info, err := h.chains.Fit(c.Request.Context(), c.Param("id"), req.Sequences, req.Weighting)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Update handles POST /api/v1/chains/:id/update
func (h *ChainHandler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	info, err := h.chains.Update(c.Request.Context(), c.Param("id"), req.Sequences)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Generate handles POST /api/v1/chains/:id/generate
func (h *ChainHandler) Generate(c *gin.Context) {
	var req services.GenerateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	id := c.Param("id")
	seq, err := h.chains.Generate(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenerateResponse{ChainID: id, Sequence: seq, Length: len(seq)})
}

// Table handles GET /api/v1/chains/:id/table?top=N
func (h *ChainHandler) Table(c *gin.Context) {
	top := 0
	if raw := c.Query("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondBadRequest(c, fmt.Errorf("top must be an integer, got %q", raw))
			return
		}
		top = n
	}

	table, err := h.chains.Table(c.Request.Context(), c.Param("id"), top)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}
