package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"sat-dispatch-backend/internal/mw"
	"sat-dispatch-backend/internal/notification"
	"sat-dispatch-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, webpushOptions *webpush.Options, alerts *notification.WorkerPool) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, webpushOptions, alerts)

	// Rate limit: 10 requests per second with a burst of 5
	rateLimiter := mw.RateLimiter(rate.Limit(10), 5)

	// Cache the client list only: it changes rarely. Roster and emergency
	// reads must always reflect the latest toggle or claim, so they are
	// never cached.
	cacheStore := cache.New(5*time.Minute, 10*time.Minute)
	caching := mw.Cache(cacheStore, 5*time.Minute)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/emergency/tecs", handler.GetTechnicians)
		api.GET("/emergency/clients", caching, handler.GetClients)
		api.PUT("/emergency/tecs/:tec_id/toggle", handler.ToggleOnCall)
		api.PUT("/emergency/tecs/:tec_id/clients", handler.ReplaceClients)

		api.POST("/emergency/orders", handler.OpenEmergencyOrder)
		api.POST("/emergency/orders/:order_id/clear", handler.ClearEmergency)
		api.POST("/emergency/orders/:order_id/close", handler.CloseEmergencyOrder)
		api.GET("/emergency/check", handler.CheckEmergency)

		api.PUT("/devices", handler.PutDevice)
		api.DELETE("/devices", handler.DeleteDevice)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
