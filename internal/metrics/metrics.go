// Glasspane Realtime - Presence and Event Fan-Out for the Glasspane Social App
// Copyright 2026 Glasspane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/glasspane/realtime

// Package metrics provides Prometheus instrumentation for the realtime broker:
//   - Session lifecycle (admissions, active connections, liveness evictions)
//   - Presence (online user gauge)
//   - Event fan-out (inbound/outbound counts by type, send failures)
//   - API endpoint latency and throughput
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session lifecycle metrics
	SessionsAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_sessions_admitted_total",
			Help: "Total number of websocket sessions admitted",
		},
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections_active",
			Help: "Current number of open websocket sessions",
		},
	)

	LivenessEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_liveness_evictions_total",
			Help: "Total number of sessions evicted by the liveness sweep",
		},
	)

	// Presence metrics
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_online_users",
			Help: "Current number of users bound to a live session",
		},
	)

	// Fan-out metrics
	EventsInbound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_inbound_total",
			Help: "Total inbound client events by type",
		},
		[]string{"type"},
	)

	EventsOutbound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_outbound_total",
			Help: "Total outbound events delivered to sessions, by type",
		},
		[]string{"type"},
	)

	SendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_send_failures_total",
			Help: "Total sends dropped because a session's outbound queue was unwritable",
		},
	)

	BroadcastFanout = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_broadcast_fanout_recipients",
			Help:    "Number of recipients per broadcast",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordSessionAdmitted increments admission counters and the active gauge.
func RecordSessionAdmitted() {
	SessionsAdmitted.Inc()
	ConnectionsActive.Inc()
}

// RecordSessionClosed decrements the active connection gauge.
func RecordSessionClosed() {
	ConnectionsActive.Dec()
}

// RecordLivenessEviction counts a sweep eviction. The session-closed
// decrement is recorded separately by the disconnect path.
func RecordLivenessEviction() {
	LivenessEvictions.Inc()
}

// SetOnlineUsers updates the presence gauge.
func SetOnlineUsers(n int) {
	OnlineUsers.Set(float64(n))
}

// RecordEventInbound counts one inbound client event.
func RecordEventInbound(eventType string) {
	EventsInbound.WithLabelValues(eventType).Inc()
}

// RecordEventOutbound counts outbound deliveries of one event to n recipients.
func RecordEventOutbound(eventType string, recipients int) {
	if recipients > 0 {
		EventsOutbound.WithLabelValues(eventType).Add(float64(recipients))
	}
}

// RecordBroadcast observes the recipient count of one broadcast.
func RecordBroadcast(recipients int) {
	BroadcastFanout.Observe(float64(recipients))
}

// RecordSendFailure counts a dropped send.
func RecordSendFailure() {
	SendFailures.Inc()
}

// RecordAPIRequest records metrics for an HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
