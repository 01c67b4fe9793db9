package api

import (
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"sat-dispatch-backend/internal/notification"
	"sat-dispatch-backend/internal/store"
)

// tecHeader carries the calling technician's id. Authenticating it is the
// session layer's job, outside this service.
const tecHeader = "X-Technician-ID"

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	webpush *webpush.Options
	alerts  *notification.WorkerPool
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, webpushOptions *webpush.Options, alerts *notification.WorkerPool) *Handler {
	return &Handler{
		store:   s,
		webpush: webpushOptions,
		alerts:  alerts,
	}
}

// technicianID extracts the calling technician from the request headers.
func technicianID(c *gin.Context) (int64, bool) {
	raw := c.GetHeader(tecHeader)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing or invalid technician id"})
		return 0, false
	}
	return id, true
}
