package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// clientResponse represents a serviced client in roster payloads.
type clientResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// technicianResponse is one row of the on-call roster.
type technicianResponse struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	OnCall         bool             `json:"on_call"`
	Active         bool             `json:"active"`
	CurrentOrderID *int64           `json:"current_order_id"`
	Clients        []clientResponse `json:"clients"`
}

// GetTechnicians handles GET /api/emergency/tecs.
func (h *Handler) GetTechnicians(c *gin.Context) {
	tecs, err := h.store.ListTechnicians(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]technicianResponse, 0, len(tecs))
	for _, tec := range tecs {
		clients := make([]clientResponse, 0, len(tec.Clients))
		for _, cl := range tec.Clients {
			clients = append(clients, clientResponse{ID: cl.ID, Name: cl.Name})
		}
		responses = append(responses, technicianResponse{
			ID:             tec.ID,
			Name:           tec.Name,
			OnCall:         tec.OnCall,
			Active:         tec.Active,
			CurrentOrderID: tec.CurrentOrderID,
			Clients:        clients,
		})
	}
	c.JSON(http.StatusOK, responses)
}

// GetClients handles GET /api/emergency/clients.
func (h *Handler) GetClients(c *gin.Context) {
	clients, err := h.store.ListClients(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]clientResponse, 0, len(clients))
	for _, cl := range clients {
		responses = append(responses, clientResponse{ID: cl.ID, Name: cl.Name})
	}
	c.JSON(http.StatusOK, responses)
}

type toggleOnCallRequest struct {
	OnCall *bool `json:"on_call" binding:"required"`
}

// ToggleOnCall handles PUT /api/emergency/tecs/:tec_id/toggle. The flag only
// controls future alert eligibility; an emergency already claimed by the
// technician stays claimed.
func (h *Handler) ToggleOnCall(c *gin.Context) {
	tecID, err := strconv.ParseInt(c.Param("tec_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid technician id"})
		return
	}

	var req toggleOnCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.SetOnCall(c.Request.Context(), tecID, *req.OnCall); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "technician not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"on_call": *req.OnCall})
}

type replaceClientsRequest struct {
	Clients []int64 `json:"clients"`
}

// ReplaceClients handles PUT /api/emergency/tecs/:tec_id/clients. The request
// carries the complete target affinity set; the server replaces, never merges,
// so the last supervisor submission wins.
func (h *Handler) ReplaceClients(c *gin.Context) {
	tecID, err := strconv.ParseInt(c.Param("tec_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid technician id"})
		return
	}

	var req replaceClientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count, err := h.store.ReplaceClients(c.Request.Context(), tecID, req.Clients)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "technician not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"clients": count})
}
