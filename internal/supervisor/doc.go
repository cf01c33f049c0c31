// Glasspane Realtime - Presence and Event Fan-Out for the Glasspane Social App
// Copyright 2026 Glasspane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/glasspane/realtime

// Package supervisor builds the suture supervision tree that keeps the
// presence broker and the HTTP server running. Supervisor lifecycle events
// are logged through a slog adapter backed by the service's zerolog logger.
package supervisor
