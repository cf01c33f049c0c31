// Glasspane Realtime - Presence and Event Fan-Out for the Glasspane Social App
// Copyright 2026 Glasspane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/glasspane/realtime

package realtime

import (
	"github.com/goccy/go-json"

	"github.com/glasspane/realtime/internal/logging"
)

// Message types for the wire protocol. Frames are flat JSON objects with a
// "type" discriminator and type-specific payload fields.
const (
	// Inbound (client to server)
	MessageTypeAuth       = "auth"
	MessageTypeUserOnline = "user_online"
	MessageTypePing       = "ping"
	MessageTypeLike       = "like"
	// Inbound and outbound
	MessageTypeNewPost      = "new_post"
	MessageTypeNewComment   = "new_comment"
	MessageTypeNotification = "notification"
	// Outbound (server to client)
	MessageTypeConnected        = "connected"
	MessageTypeAuthSuccess      = "auth_success"
	MessageTypePong             = "pong"
	MessageTypeUserStatusChange = "user_status_change"
	MessageTypeUpdateLikes      = "update_likes"
	MessageTypeError            = "error"
)

// Frame is the decoded form of one inbound client message. Only the fields
// relevant to the frame's type are populated; payloads the broker merely
// relays (posts, comments, notifications) stay as raw JSON so they pass
// through byte-for-byte.
type Frame struct {
	Type         string          `json:"type"`
	UserID       int64           `json:"userId,omitempty"`
	TargetUserID int64           `json:"targetUserId,omitempty"`
	PostID       int64           `json:"postId,omitempty"`
	LikesCount   int             `json:"likesCount,omitempty"`
	Post         json.RawMessage `json:"post,omitempty"`
	Comment      json.RawMessage `json:"comment,omitempty"`
	Notification json.RawMessage `json:"notification,omitempty"`
}

// ConnectedEvent greets a newly admitted session with its server-assigned id.
type ConnectedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
}

// AuthSuccessEvent acknowledges an accepted identity claim.
type AuthSuccessEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// PongEvent answers an application-level keep-alive ping.
type PongEvent struct {
	Type string `json:"type"`
}

// UserStatusChangeEvent announces a presence transition.
type UserStatusChangeEvent struct {
	Type     string `json:"type"`
	UserID   int64  `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// NewPostEvent relays a freshly created post to other sessions.
type NewPostEvent struct {
	Type string          `json:"type"`
	Post json.RawMessage `json:"post"`
}

// NewCommentEvent relays a comment on a post.
type NewCommentEvent struct {
	Type    string          `json:"type"`
	PostID  int64           `json:"postId"`
	Comment json.RawMessage `json:"comment"`
}

// UpdateLikesEvent relays a like-count change.
type UpdateLikesEvent struct {
	Type       string `json:"type"`
	PostID     int64  `json:"postId"`
	LikesCount int    `json:"likesCount"`
}

// NotificationEvent carries a targeted notification to one user's session.
type NotificationEvent struct {
	Type         string          `json:"type"`
	Notification json.RawMessage `json:"notification"`
}

// ErrorEvent reports a malformed frame back to its sender.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// encodeEvent serializes an outbound event once; the same bytes are then
// reused for every recipient of a broadcast. Returns nil on marshal failure,
// which callers treat as a no-op send.
func encodeEvent(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode outbound event")
		return nil
	}
	return data
}
