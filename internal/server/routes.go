// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/hookpanel/internal/handlers"
	"codeberg.org/oliverandrich/hookpanel/internal/metrics"
	"github.com/labstack/echo/v4"
)

type routeDeps struct {
	handlers *handlers.Handlers
	webhooks *handlers.WebhookHandlers
	auth     *handlers.AuthHandlers
	metrics  *metrics.Metrics
}

func setupRoutes(e *echo.Echo, d routeDeps) {
	e.GET("/health", d.handlers.Health)
	e.GET("/metrics", echo.WrapHandler(d.metrics.Handler()))

	// The dashboard calls the API under /api; the bare paths stay for scripts.
	for _, g := range []*echo.Group{e.Group(""), e.Group("/api")} {
		registerAPI(g, d)
	}
}

func registerAPI(g *echo.Group, d routeDeps) {
	g.GET("/webhooks", d.webhooks.List)
	g.GET("/webhooks/scopes", d.webhooks.Scopes)
	g.POST("/webhooks", d.webhooks.Create)
	g.PUT("/webhooks/:id", d.webhooks.Update)
	g.DELETE("/webhooks/:id", d.webhooks.Delete)

	g.GET("/auth/check", d.auth.Check)
	g.POST("/auth/register", d.auth.Register)
	g.POST("/auth/login", d.auth.Login)
	g.POST("/auth/password-reset/request", d.auth.RequestPasswordReset)
	g.POST("/auth/password-reset/reset", d.auth.CompletePasswordReset)
}
