package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"sat-dispatch-backend/internal/notification"
)

type openOrderRequest struct {
	ClientID    int64  `json:"client_id" binding:"required"`
	Description string `json:"description"`
}

// OpenEmergencyOrder handles POST /api/emergency/orders: opens an
// out-of-hours order and fans out alerts to every eligible on-call
// technician.
func (h *Handler) OpenEmergencyOrder(c *gin.Context) {
	var req openOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, tecIDs, err := h.store.OpenEmergencyOrder(c.Request.Context(), req.ClientID, req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.alerts != nil && len(tecIDs) > 0 {
		h.alerts.Dispatch(notification.AlertJob{OrderID: order.ID, TechnicianIDs: tecIDs})
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       order.ID,
		"notified": len(tecIDs),
	})
}

// CloseEmergencyOrder handles POST /api/emergency/orders/:order_id/close:
// the underlying ticket is finished, alerting stops, and the owning
// technician becomes available for new emergencies.
func (h *Handler) CloseEmergencyOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	if err := h.store.CloseEmergencyOrder(c.Request.Context(), orderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "emergency order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"closed": true})
}
