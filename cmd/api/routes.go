package main

import (
	"call-monitor/internal/auth"
	"call-monitor/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authManager *auth.Manager) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Inbound channels (public). The platform and the trigger service cannot
	// attach dashboard tokens to their callbacks.
	// NOTE: in production these should sit behind a shared-secret path or
	// signature validation at the fronting proxy.
	r.POST("/webhooks/call-events", h.CallEvent)
	r.POST("/webhooks/call-results", h.CallResult)
	r.POST("/contacts/pending", h.PendingContact)

	// token issuance
	r.POST("/v1/auth/login", h.Login)

	// dashboard reads
	v1 := r.Group("/v1")
	v1.Use(auth.RequireToken(authManager))
	{
		v1.GET("/calls", h.ListCalls)
		v1.GET("/stats", h.Stats)
	}
}
