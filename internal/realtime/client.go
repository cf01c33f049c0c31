// Glasspane Realtime - Presence and Event Fan-Out for the Glasspane Social App
// Copyright 2026 Glasspane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/glasspane/realtime

package realtime

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/glasspane/realtime/internal/logging"
)

// clientIDCounter generates unique, monotonically increasing IDs for clients.
// DETERMINISM: This ensures clients can be sorted in a consistent order for
// broadcast operations, eliminating non-deterministic map iteration order.
var clientIDCounter atomic.Uint64

// Client is one live transport session: the websocket connection plus the
// server-side state the broker tracks for it.
//
// The read pump forwards raw inbound frames to the broker; the write pump
// drains the send queue onto the wire. All session state (userID, lastSeen)
// is owned by the broker and guarded by its mutex; the pumps never touch it.
type Client struct {
	// id is a unique identifier for this client, used for deterministic ordering.
	id        uint64
	sessionID string
	broker    *Broker
	conn      *websocket.Conn
	send      chan []byte

	// userID is the bound application user, 0 while unauthenticated.
	// Guarded by broker.mu.
	userID int64

	// lastSeen is the last inbound activity timestamp, evaluated by the
	// liveness sweep. Guarded by broker.mu.
	lastSeen time.Time
}

// NewClient creates a new Client with a fresh session id.
func NewClient(broker *Broker, conn *websocket.Conn) *Client {
	return &Client{
		id:        clientIDCounter.Add(1),
		sessionID: uuid.New().String(),
		broker:    broker,
		conn:      conn,
		send:      make(chan []byte, broker.cfg.SendBuffer),
		lastSeen:  time.Now(),
	}
}

// SessionID returns the server-assigned session identifier.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Start begins reading and writing for the client. The caller must have
// registered the client with the broker first.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump forwards raw frames from the websocket connection to the broker.
// Decoding happens on the broker's goroutine so that every handler for a
// given broker runs on a single logical worker.
func (c *Client) readPump() {
	defer func() {
		c.broker.Unregister <- c
		_ = c.conn.Close() // best-effort cleanup
	}()

	c.conn.SetReadLimit(c.broker.cfg.MaxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("session_id", c.sessionID).Msg("unexpected websocket close")
			}
			return
		}
		c.broker.inbound <- inboundFrame{client: c, data: data}
	}
}

// writePump drains the send queue onto the websocket connection. When the
// broker closes the queue, a normal-closure frame is written and the
// connection is torn down.
func (c *Client) writePump() {
	defer func() {
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		message, ok := <-c.send
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.broker.cfg.WriteWait)); err != nil {
			logging.Error().Err(err).Msg("failed to set write deadline")
			return
		}

		if !ok {
			// The broker closed the queue: organic removal, eviction, or shutdown.
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
				logging.Debug().Err(err).Str("session_id", c.sessionID).Msg("failed to write close frame")
			}
			return
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Debug().Err(err).Str("session_id", c.sessionID).Msg("websocket write failed")
			return
		}
	}
}
