// Glasspane Realtime - Presence and Event Fan-Out for the Glasspane Social App
// Copyright 2026 Glasspane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/glasspane/realtime

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/glasspane/realtime/internal/config"
	"github.com/glasspane/realtime/internal/logging"
	"github.com/glasspane/realtime/internal/realtime"
	"github.com/glasspane/realtime/internal/validation"
)

// Handler holds the dependencies for all HTTP endpoints.
type Handler struct {
	cfg    *config.Config
	broker *realtime.Broker
}

// NewHandler creates a Handler backed by the given broker.
func NewHandler(cfg *config.Config, broker *realtime.Broker) *Handler {
	return &Handler{
		cfg:    cfg,
		broker: broker,
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// HealthReady reports broker readiness and the current session count.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status":   "ok",
		"sessions": h.broker.SessionCount(),
	})
}

// OnlineUsers returns the ids of every user currently bound to a live
// session, matching the shape the Glasspane SPA already consumes.
func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	ids := h.broker.OnlineUserIDs()
	NewResponseWriter(w, r).Success(map[string]interface{}{"onlineUsers": ids})
}

// PublishPost fans a persisted post out to every session.
func (h *Handler) PublishPost(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req PublishPostRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	h.broker.PublishPost(req.Post)
	rw.Accepted(map[string]string{"event": realtime.MessageTypeNewPost})
}

// PublishComment fans a persisted comment out to every session.
func (h *Handler) PublishComment(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req PublishCommentRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	h.broker.PublishComment(req.PostID, req.Comment)
	rw.Accepted(map[string]string{"event": realtime.MessageTypeNewComment})
}

// PublishLikes fans a like-count change out to every session.
func (h *Handler) PublishLikes(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req PublishLikesRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	h.broker.PublishLikes(req.PostID, req.LikesCount)
	rw.Accepted(map[string]string{"event": realtime.MessageTypeUpdateLikes})
}

// PublishNotification delivers a notification to one user's bound session.
// Offline targets are reported as delivered=false; the event is dropped,
// never queued.
func (h *Handler) PublishNotification(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req PublishNotificationRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	delivered := h.broker.PublishNotification(req.TargetUserID, req.Notification)
	rw.Accepted(map[string]interface{}{
		"event":     realtime.MessageTypeNotification,
		"delivered": delivered,
	})
}

// WebSocket upgrades the connection and hands it to the broker.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := realtime.NewClient(h.broker, conn)
	h.broker.Register <- client
	client.Start()
}

// getUpgrader creates a websocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: h.handshakeTimeout(),
	}
}

func (h *Handler) handshakeTimeout() time.Duration {
	if h.cfg == nil || h.cfg.Realtime.HandshakeTimeout <= 0 {
		return 10 * time.Second
	}
	return h.cfg.Realtime.HandshakeTimeout
}

// checkWebSocketOrigin validates websocket connection origins against the
// configured CORS origins. A missing Origin header is rejected: browsers
// always send one, so its absence means the caller is sidestepping CORS.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("websocket connection rejected: missing Origin header")
		return false
	}

	// Fail open when unconfigured (tests, development).
	if h.cfg == nil {
		return true
	}

	for _, allowed := range h.cfg.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", origin).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// decodeAndValidate decodes a JSON request body into dst and validates it.
// Writes the error response and returns false on failure.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		rw.ValidationFailed(err.Error())
		return false
	}
	return true
}
