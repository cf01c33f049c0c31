// Glasspane Realtime - Presence and Event Fan-Out for the Glasspane Social App
// Copyright 2026 Glasspane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/glasspane/realtime

package api

import "github.com/goccy/go-json"

// PublishPostRequest carries a freshly persisted post for fan-out.
type PublishPostRequest struct {
	Post json.RawMessage `json:"post" validate:"required"`
}

// PublishCommentRequest carries a persisted comment for fan-out.
type PublishCommentRequest struct {
	PostID  int64           `json:"postId" validate:"required,min=1"`
	Comment json.RawMessage `json:"comment" validate:"required"`
}

// PublishLikesRequest carries a like-count change for fan-out.
type PublishLikesRequest struct {
	PostID     int64 `json:"postId" validate:"required,min=1"`
	LikesCount int   `json:"likesCount" validate:"min=0"`
}

// PublishNotificationRequest carries a notification for targeted delivery.
type PublishNotificationRequest struct {
	TargetUserID int64           `json:"targetUserId" validate:"required,min=1"`
	Notification json.RawMessage `json:"notification" validate:"required"`
}
