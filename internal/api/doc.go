// Glasspane Realtime - Presence and Event Fan-Out for the Glasspane Social App
// Copyright 2026 Glasspane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/glasspane/realtime

// Package api provides the HTTP surface of the realtime service: the
// websocket upgrade endpoint, the who-is-online query, the publish endpoints
// the CRUD backend calls after database writes, and health probes. All REST
// responses use the standardized APIResponse envelope.
package api
