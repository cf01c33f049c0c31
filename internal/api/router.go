// Glasspane Realtime - Presence and Event Fan-Out for the Glasspane Social App
// Copyright 2026 Glasspane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/glasspane/realtime

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glasspane/realtime/internal/config"
	"github.com/glasspane/realtime/internal/middleware"
	"github.com/glasspane/realtime/internal/realtime"
)

// Router wires handlers into a chi mux.
type Router struct {
	cfg     *config.Config
	handler *Handler
}

// NewRouter creates a Router for the given broker.
func NewRouter(cfg *config.Config, broker *realtime.Broker) *Router {
	return &Router{
		cfg:     cfg,
		handler: NewHandler(cfg, broker),
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware stack.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health probes. Rate limited separately so orchestrator polling
	// never counts against the client limiter.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(120, time.Minute))
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// REST surface. PrometheusMetrics wraps the ResponseWriter and so
	// must not apply to the websocket route below, which needs Hijacker.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.rateLimit())
		r.Use(middleware.PrometheusMetrics)

		r.Get("/users/online", router.handler.OnlineUsers)

		r.Post("/publish/post", router.handler.PublishPost)
		r.Post("/publish/comment", router.handler.PublishComment)
		r.Post("/publish/likes", router.handler.PublishLikes)
		r.Post("/publish/notification", router.handler.PublishNotification)
	})

	// Websocket upgrade. No rate limit or metrics wrapping: connections
	// are long lived and the upgrader requires the raw ResponseWriter.
	r.Get("/api/v1/ws", router.handler.WebSocket)

	if router.cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// rateLimit builds the per-IP limiter for the REST surface.
func (router *Router) rateLimit() func(http.Handler) http.Handler {
	limit := router.cfg.Server.RateLimitPerMinute
	if limit <= 0 {
		// Disabled: pass requests through untouched.
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(limit, time.Minute)
}
