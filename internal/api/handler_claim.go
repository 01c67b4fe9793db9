package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sat-dispatch-backend/internal/store"
)

// ClearEmergency handles POST /api/emergency/orders/:order_id/clear — the
// claim operation. The first technician the database processes wins; the
// winner keeps being granted on repeated calls, everyone else is told who
// owns the order.
func (h *Handler) ClearEmergency(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	tecID, ok := technicianID(c)
	if !ok {
		return
	}

	result, err := h.store.ClaimEmergency(c.Request.Context(), orderID, tecID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	switch result.Status {
	case store.ClaimGranted:
		c.JSON(http.StatusOK, gin.H{"granted": true})
	case store.ClaimNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "emergency order not found"})
	default:
		owner := result.OwnerName
		if owner == "" {
			owner = "outro técnico"
		}
		c.JSON(http.StatusForbidden, gin.H{
			"owned_by_someone_else": true,
			"message":               fmt.Sprintf("SAT %d já está em atendimento por %s", orderID, owner),
		})
	}
}

// CheckEmergency handles GET /api/emergency/check: the cold-start recovery
// read for alerts the push channel may have missed.
func (h *Handler) CheckEmergency(c *gin.Context) {
	tecID, ok := technicianID(c)
	if !ok {
		return
	}

	pending, err := h.store.PendingEmergency(c.Request.Context(), tecID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if pending == nil {
		c.JSON(http.StatusOK, gin.H{
			"emergency_order_id":   nil,
			"notification_pending": false,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"emergency_order_id":   strconv.FormatInt(pending.OrderID, 10),
		"notification_pending": pending.NotifyPending,
	})
}
