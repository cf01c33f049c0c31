// Glasspane Realtime - Presence and Event Fan-Out for the Glasspane Social App
// Copyright 2026 Glasspane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/glasspane/realtime

// Package realtime implements the presence and event fan-out broker: it
// tracks connected websocket sessions, binds them to application user
// identities, broadcasts typed events to subsets of sessions, and evicts
// sessions that stop answering keep-alive pings.
//
// One broker goroutine (RunWithContext) processes every registration,
// inbound frame, broadcast, and liveness sweep, so no two handlers for the
// same broker run concurrently. HTTP-facing reads and publishes synchronize
// with that goroutine through the broker's mutex and channels. Presence is
// broker-instance scoped: two broker processes do not share state.
package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/glasspane/realtime/internal/config"
	"github.com/glasspane/realtime/internal/logging"
	"github.com/glasspane/realtime/internal/metrics"
)

// ShutdownReason identifies why the broker is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// broadcastRequest is a pending fan-out enqueued by the HTTP publish surface.
type broadcastRequest struct {
	eventType string
	data      []byte
	exclude   string // session id to skip, empty for none
}

// inboundFrame is one raw client frame awaiting dispatch on the broker goroutine.
type inboundFrame struct {
	client *Client
	data   []byte
}

// Broker maintains the set of active sessions, the user-to-session presence
// map, and delivers events to subsets of sessions.
type Broker struct {
	cfg config.RealtimeConfig

	// mu guards sessions, users, and each client's userID/lastSeen.
	// The run loop takes the write lock for every mutation; HTTP readers
	// take the read lock for snapshots.
	mu       sync.RWMutex
	sessions map[string]*Client // session id -> live session
	users    map[int64]string   // user id -> owning session id (last claim wins)

	Register   chan *Client
	Unregister chan *Client
	broadcast  chan broadcastRequest
	inbound    chan inboundFrame
}

// NewBroker creates a broker with the given settings.
func NewBroker(cfg config.RealtimeConfig) *Broker {
	return &Broker{
		cfg:        cfg,
		sessions:   make(map[string]*Client),
		users:      make(map[int64]string),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan broadcastRequest, cfg.BroadcastBuffer),
		inbound:    make(chan inboundFrame, cfg.BroadcastBuffer),
	}
}

// RunWithContext processes all broker events until the context is canceled.
// Designed for suture supervision: on cancellation every session is closed
// and ctx.Err() is returned so the supervisor can restart a fresh broker.
//
// DETERMINISM: Uses priority-based selection so behavior is predictable when
// multiple channels are ready:
//   - Priority 1: Context cancellation (shutdown)
//   - Priority 2: Client lifecycle events (Register/Unregister)
//   - Priority 3: Inbound frames, broadcasts, and the liveness sweep
func (b *Broker) RunWithContext(ctx context.Context) error {
	sweep := time.NewTicker(b.cfg.SweepInterval)
	defer sweep.Stop()

	for {
		// Priority 1: check for shutdown (non-blocking)
		select {
		case <-ctx.Done():
			b.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: client lifecycle events (non-blocking)
		select {
		case client := <-b.Register:
			b.admit(client)
			continue
		case client := <-b.Unregister:
			b.disconnect(client)
			continue
		default:
		}

		// Priority 3: wait for any event (blocking)
		select {
		case <-ctx.Done():
			b.shutdown(ctx)
			return ctx.Err()

		case client := <-b.Register:
			b.admit(client)

		case client := <-b.Unregister:
			b.disconnect(client)

		case frame := <-b.inbound:
			b.handleFrame(frame.client, frame.data)

		case req := <-b.broadcast:
			b.mu.Lock()
			b.broadcastLocked(req.eventType, req.data, req.exclude)
			b.mu.Unlock()

		case <-sweep.C:
			b.sweepStale(time.Now())
		}
	}
}

// admit stores a new session and greets it with a connected event carrying
// its server-assigned session id.
func (b *Broker) admit(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sessions[c.sessionID] = c
	metrics.RecordSessionAdmitted()

	b.sendLocked(c, MessageTypeConnected, encodeEvent(ConnectedEvent{
		Type:      MessageTypeConnected,
		SessionID: c.sessionID,
		Timestamp: time.Now().UnixMilli(),
	}))

	logging.Info().
		Str("session_id", c.sessionID).
		Int("total_sessions", len(b.sessions)).
		Msg("session admitted")
}

// disconnect removes a session after its transport closed.
func (b *Broker) disconnect(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropSessionLocked(c)
}

// handleFrame decodes and dispatches one inbound client frame.
//
// A malformed frame earns the sender an error event and nothing else; an
// unknown type is logged and ignored. Either way the session stays open and
// no other session is affected.
func (b *Broker) handleFrame(c *Client, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// The session may have been dropped while this frame sat in the queue.
	if _, ok := b.sessions[c.sessionID]; !ok {
		return
	}

	// Any inbound traffic counts as liveness, not just pings.
	c.lastSeen = time.Now()

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		b.sendLocked(c, MessageTypeError, encodeEvent(ErrorEvent{
			Type:    MessageTypeError,
			Message: "invalid message: " + err.Error(),
		}))
		return
	}
	if frame.Type == "" {
		b.sendLocked(c, MessageTypeError, encodeEvent(ErrorEvent{
			Type:    MessageTypeError,
			Message: "missing message type",
		}))
		return
	}

	metrics.RecordEventInbound(frame.Type)

	switch frame.Type {
	case MessageTypeAuth:
		if frame.UserID <= 0 {
			b.sendLocked(c, MessageTypeError, encodeEvent(ErrorEvent{
				Type:    MessageTypeError,
				Message: "auth requires a userId",
			}))
			return
		}
		b.bindLocked(c, frame.UserID)
		b.sendLocked(c, MessageTypeAuthSuccess, encodeEvent(AuthSuccessEvent{
			Type:      MessageTypeAuthSuccess,
			SessionID: c.sessionID,
		}))

	case MessageTypeUserOnline:
		// Socket.IO-era variant of auth: binds and announces, no reply.
		if frame.UserID <= 0 {
			b.sendLocked(c, MessageTypeError, encodeEvent(ErrorEvent{
				Type:    MessageTypeError,
				Message: "user_online requires a userId",
			}))
			return
		}
		b.bindLocked(c, frame.UserID)

	case MessageTypePing:
		b.sendLocked(c, MessageTypePong, encodeEvent(PongEvent{Type: MessageTypePong}))

	case MessageTypeNewPost:
		b.broadcastLocked(MessageTypeNewPost, encodeEvent(NewPostEvent{
			Type: MessageTypeNewPost,
			Post: frame.Post,
		}), c.sessionID)

	case MessageTypeNewComment:
		b.broadcastLocked(MessageTypeNewComment, encodeEvent(NewCommentEvent{
			Type:    MessageTypeNewComment,
			PostID:  frame.PostID,
			Comment: frame.Comment,
		}), c.sessionID)

	case MessageTypeLike:
		b.broadcastLocked(MessageTypeUpdateLikes, encodeEvent(UpdateLikesEvent{
			Type:       MessageTypeUpdateLikes,
			PostID:     frame.PostID,
			LikesCount: frame.LikesCount,
		}), c.sessionID)

	case MessageTypeNotification:
		b.sendToUserLocked(frame.TargetUserID, MessageTypeNotification, encodeEvent(NotificationEvent{
			Type:         MessageTypeNotification,
			Notification: frame.Notification,
		}))

	default:
		logging.Debug().
			Str("type", frame.Type).
			Str("session_id", c.sessionID).
			Msg("unknown message type ignored")
	}
}

// bindLocked records an identity claim: the session becomes the owner of the
// user's presence entry (last claim wins: a prior session's binding is
// silently superseded, its transport left open) and the transition is
// announced to everyone except the claimer.
func (b *Broker) bindLocked(c *Client, userID int64) {
	c.userID = userID
	b.users[userID] = c.sessionID
	metrics.SetOnlineUsers(len(b.users))

	b.broadcastLocked(MessageTypeUserStatusChange, encodeEvent(UserStatusChangeEvent{
		Type:     MessageTypeUserStatusChange,
		UserID:   userID,
		IsOnline: true,
	}), c.sessionID)

	logging.Info().
		Int64("user_id", userID).
		Str("session_id", c.sessionID).
		Msg("presence online")
}

// unbindLocked removes the session's presence entry and announces offline,
// but only while the entry still points at this session. An older session's
// delayed disconnect must not evict the binding a newer claim installed.
//
// Only the session's latest bound id is unbound: a session that claimed one
// user and then another leaves the first user's entry behind, as the original
// implementation did.
func (b *Broker) unbindLocked(c *Client) {
	if c.userID == 0 {
		return
	}
	if b.users[c.userID] != c.sessionID {
		return
	}

	delete(b.users, c.userID)
	metrics.SetOnlineUsers(len(b.users))

	b.broadcastLocked(MessageTypeUserStatusChange, encodeEvent(UserStatusChangeEvent{
		Type:     MessageTypeUserStatusChange,
		UserID:   c.userID,
		IsOnline: false,
	}), "")

	logging.Info().
		Int64("user_id", c.userID).
		Str("session_id", c.sessionID).
		Msg("presence offline")
}

// dropSessionLocked removes a session from the registry, closes its send
// queue, and unbinds its presence entry. Idempotent: dropping an already
// removed session is a no-op, so the unregister that follows a send-failure
// drop cannot double-close the queue.
func (b *Broker) dropSessionLocked(c *Client) {
	if _, ok := b.sessions[c.sessionID]; !ok {
		return
	}

	delete(b.sessions, c.sessionID)
	close(c.send)
	metrics.RecordSessionClosed()

	b.unbindLocked(c)

	logging.Info().
		Str("session_id", c.sessionID).
		Int("total_sessions", len(b.sessions)).
		Msg("session closed")
}

// broadcastLocked delivers pre-encoded bytes to every live session except the
// excluded one. A session whose queue is unwritable is dropped after the
// loop, so a failure partway through never starves the remaining recipients.
//
// DETERMINISM: recipients are visited in client-id order, not map order.
func (b *Broker) broadcastLocked(eventType string, data []byte, exclude string) {
	if data == nil {
		return
	}

	clients := b.sortedSessionsLocked()

	delivered := 0
	var failed []*Client
	for _, c := range clients {
		if c.sessionID == exclude {
			continue
		}
		select {
		case c.send <- data:
			delivered++
		default:
			// Queue full: the client stopped draining. Treat as disconnect.
			failed = append(failed, c)
		}
	}

	metrics.RecordBroadcast(delivered)
	metrics.RecordEventOutbound(eventType, delivered)

	for _, c := range failed {
		metrics.RecordSendFailure()
		logging.Warn().
			Str("session_id", c.sessionID).
			Str("event_type", eventType).
			Msg("send queue full, dropping session")
		b.dropSessionLocked(c)
	}
}

// sendLocked delivers pre-encoded bytes to one session. An unwritable queue
// drops the session, mirroring the broadcast failure path.
func (b *Broker) sendLocked(c *Client, eventType string, data []byte) {
	if data == nil {
		return
	}
	// A presence cascade earlier in the same dispatch (a bind's online
	// announcement dropping a stalled recipient, whose offline announcement
	// drops this session) may have already closed the queue. Sending on it
	// would panic the broker goroutine.
	if b.sessions[c.sessionID] != c {
		return
	}
	select {
	case c.send <- data:
		metrics.RecordEventOutbound(eventType, 1)
	default:
		metrics.RecordSendFailure()
		logging.Warn().
			Str("session_id", c.sessionID).
			Str("event_type", eventType).
			Msg("send queue full, dropping session")
		b.dropSessionLocked(c)
	}
}

// sendToUserLocked delivers to the session currently bound to userID. If the
// user has no bound session the event is silently dropped; offline users
// never receive events retroactively.
func (b *Broker) sendToUserLocked(userID int64, eventType string, data []byte) bool {
	sessionID, ok := b.users[userID]
	if !ok {
		logging.Debug().
			Int64("user_id", userID).
			Str("event_type", eventType).
			Msg("target user offline, event dropped")
		return false
	}
	c, ok := b.sessions[sessionID]
	if !ok {
		return false
	}
	b.sendLocked(c, eventType, data)
	return true
}

// sweepStale evicts every session whose last activity predates the timeout.
// Each eviction runs the same cleanup as an organic disconnect; one session's
// eviction never aborts evaluation of the rest.
func (b *Broker) sweepStale(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var stale []*Client
	for _, c := range b.sortedSessionsLocked() {
		if now.Sub(c.lastSeen) > b.cfg.SessionTimeout {
			stale = append(stale, c)
		}
	}

	for _, c := range stale {
		metrics.RecordLivenessEviction()
		logging.Info().
			Str("session_id", c.sessionID).
			Dur("idle", now.Sub(c.lastSeen)).
			Msg("evicting unresponsive session")
		// Closing the queue makes the write pump emit a normal-closure
		// frame and tear down the transport.
		b.dropSessionLocked(c)
	}
}

// sortedSessionsLocked snapshots the registry in client-id order.
func (b *Broker) sortedSessionsLocked() []*Client {
	clients := make([]*Client, 0, len(b.sessions))
	for _, c := range b.sessions {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// shutdown closes every session and logs the reason. Run only from the
// broker goroutine when the context ends.
func (b *Broker) shutdown(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	closed := len(b.sessions)
	for _, c := range b.sortedSessionsLocked() {
		close(c.send)
	}
	b.sessions = make(map[string]*Client)
	b.users = make(map[int64]string)
	metrics.SetOnlineUsers(0)

	logging.Info().
		Str("component", "realtime-broker").
		Str("reason", string(shutdownReason(ctx))).
		Int("sessions_closed", closed).
		Msg("broker stopped")
}

// shutdownReason maps the context error to a shutdown reason for logs.
func shutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// SessionCount returns the number of live sessions.
func (b *Broker) SessionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// OnlineUserIDs returns a sorted snapshot of all currently bound user ids.
func (b *Broker) OnlineUserIDs() []int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]int64, 0, len(b.users))
	for id := range b.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Resolve returns the session id currently bound to userID, if any.
func (b *Broker) Resolve(userID int64) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sessionID, ok := b.users[userID]
	return sessionID, ok
}

// PublishPost broadcasts a persisted post to every session. Used by the CRUD
// backend after it writes the post.
func (b *Broker) PublishPost(post json.RawMessage) {
	b.enqueueBroadcast(MessageTypeNewPost, encodeEvent(NewPostEvent{
		Type: MessageTypeNewPost,
		Post: post,
	}))
}

// PublishComment broadcasts a persisted comment.
func (b *Broker) PublishComment(postID int64, comment json.RawMessage) {
	b.enqueueBroadcast(MessageTypeNewComment, encodeEvent(NewCommentEvent{
		Type:    MessageTypeNewComment,
		PostID:  postID,
		Comment: comment,
	}))
}

// PublishLikes broadcasts a like-count change.
func (b *Broker) PublishLikes(postID int64, likesCount int) {
	b.enqueueBroadcast(MessageTypeUpdateLikes, encodeEvent(UpdateLikesEvent{
		Type:       MessageTypeUpdateLikes,
		PostID:     postID,
		LikesCount: likesCount,
	}))
}

// PublishNotification delivers a notification to one user's bound session.
// Returns false when the user is offline; the event is dropped, never queued.
func (b *Broker) PublishNotification(targetUserID int64, notification json.RawMessage) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sendToUserLocked(targetUserID, MessageTypeNotification, encodeEvent(NotificationEvent{
		Type:         MessageTypeNotification,
		Notification: notification,
	}))
}

// enqueueBroadcast hands a pre-encoded event to the broker goroutine. If the
// queue is full the event is dropped with a warning rather than blocking the
// HTTP handler.
func (b *Broker) enqueueBroadcast(eventType string, data []byte) {
	if data == nil {
		return
	}
	select {
	case b.broadcast <- broadcastRequest{eventType: eventType, data: data}:
	default:
		logging.Warn().Str("event_type", eventType).Msg("broadcast queue full, dropping event")
	}
}
