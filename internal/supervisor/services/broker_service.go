// Glasspane Realtime - Presence and Event Fan-Out for the Glasspane Social App
// Copyright 2026 Glasspane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/glasspane/realtime

package services

import (
	"context"
)

// ContextRunner matches *realtime.Broker's RunWithContext method.
//
// The indirection keeps this package free of a realtime import and lets
// tests substitute a fake broker.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// BrokerService wraps the presence broker as a supervised service.
//
// The broker's RunWithContext already implements the suture.Service
// pattern, so this wrapper delegates to it and provides a name for
// supervisor logging.
type BrokerService struct {
	broker ContextRunner
	name   string
}

// NewBrokerService creates a broker service wrapper.
func NewBrokerService(broker ContextRunner) *BrokerService {
	return &BrokerService{
		broker: broker,
		name:   "presence-broker",
	}
}

// Serve implements suture.Service. It returns ctx.Err() on normal shutdown;
// the broker closes every session before returning.
func (b *BrokerService) Serve(ctx context.Context) error {
	return b.broker.RunWithContext(ctx)
}

// String implements fmt.Stringer. Suture uses this to identify the service
// in log messages.
func (b *BrokerService) String() string {
	return b.name
}
