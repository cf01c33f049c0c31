// Glasspane Realtime - Presence and Event Fan-Out for the Glasspane Social App
// Copyright 2026 Glasspane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/glasspane/realtime

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockHTTPServer is a test double for the HTTPServer interface.
type mockHTTPServer struct {
	listenAndServeErr   error
	listenAndServeBlock bool
	shutdownErr         error
	shutdownCount       atomic.Int32
	stopCh              chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{stopCh: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenAndServeErr != nil {
		return m.listenAndServeErr
	}
	if m.listenAndServeBlock {
		<-m.stopCh
		return http.ErrServerClosed
	}
	return nil
}

func (m *mockHTTPServer) Shutdown(ctx context.Context) error {
	m.shutdownCount.Add(1)
	close(m.stopCh)
	return m.shutdownErr
}

func TestHTTPServerServiceImplementsSutureService(t *testing.T) {
	var _ suture.Service = NewHTTPServerService(newMockHTTPServer(), time.Second)
}

func TestHTTPServerServiceReturnsStartupError(t *testing.T) {
	mock := newMockHTTPServer()
	mock.listenAndServeErr = errors.New("address in use")

	svc := NewHTTPServerService(mock, time.Second)
	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, mock.listenAndServeErr) {
		t.Fatalf("expected wrapped startup error, got %v", err)
	}
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	mock := newMockHTTPServer()
	mock.listenAndServeBlock = true

	svc := NewHTTPServerService(mock, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after cancellation")
	}

	if mock.shutdownCount.Load() != 1 {
		t.Errorf("expected one Shutdown call, got %d", mock.shutdownCount.Load())
	}
}

func TestHTTPServerServiceShutdownErrorPropagates(t *testing.T) {
	mock := newMockHTTPServer()
	mock.listenAndServeBlock = true
	mock.shutdownErr = errors.New("drain failed")

	svc := NewHTTPServerService(mock, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err == nil || !errors.Is(err, mock.shutdownErr) {
			t.Errorf("expected wrapped shutdown error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after cancellation")
	}
}

// mockRunner is a test double for the ContextRunner interface.
type mockRunner struct {
	started chan struct{}
}

func (m *mockRunner) RunWithContext(ctx context.Context) error {
	close(m.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestBrokerServiceDelegates(t *testing.T) {
	runner := &mockRunner{started: make(chan struct{})}
	svc := NewBrokerService(runner)

	if svc.String() != "presence-broker" {
		t.Errorf("unexpected service name %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	select {
	case <-runner.started:
	case <-time.After(time.Second):
		t.Fatal("broker was never started")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("service did not stop after cancellation")
	}
}
