// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sk-pkg/logger"
)

// newTestLogger creates a real logger.Manager for unit tests, matching
// app/monitor's newTestCollector helper.
//
// Returns:
//   - *logger.Manager: initialized logger.
//   - error: initialization error.
func newTestLogger() (*logger.Manager, error) {
	return logger.New()
}

// TestPostEventsDeliversBatch validates that PostEvents sends the expected
// host id, API key header, and event payload to the configured endpoint.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestPostEventsDeliversBatch(t *testing.T) {
	l, err := newTestLogger()
	if err != nil {
		t.Fatalf("newTestLogger() error = %v", err)
	}

	var gotPath, gotAPIKey string
	var gotBody eventBatchPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cb := NewCoordinatorCallback(l, srv.URL, "test-secret", "host-1")
	cb.PostEvents(context.Background(), []SlaveEvent{
		{HostUserName: "alice", EventType: "quota_exceeded", Detail: map[string]interface{}{"uid": float64(1000)}},
	})

	if gotPath != "/api/internal/slave-events" {
		t.Errorf("path = %q, want /api/internal/slave-events", gotPath)
	}
	if gotAPIKey != "test-secret" {
		t.Errorf("X-API-Key = %q, want test-secret", gotAPIKey)
	}
	if gotBody.HostID != "host-1" {
		t.Errorf("HostID = %q, want host-1", gotBody.HostID)
	}
	if len(gotBody.Events) != 1 || gotBody.Events[0].HostUserName != "alice" {
		t.Fatalf("Events = %+v, want one event for alice", gotBody.Events)
	}
}

// TestPostEventsSkipsWhenEmpty validates that an empty batch never reaches
// the network.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestPostEventsSkipsWhenEmpty(t *testing.T) {
	l, err := newTestLogger()
	if err != nil {
		t.Fatalf("newTestLogger() error = %v", err)
	}

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	cb := NewCoordinatorCallback(l, srv.URL, "test-secret", "host-1")
	cb.PostEvents(context.Background(), nil)

	if called {
		t.Errorf("server was called for an empty event batch")
	}
}

// TestPostEventsSkipsWhenUnconfigured validates that a missing url/secret
// never reaches the network, since the callback is optional per its
// configuration contract.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestPostEventsSkipsWhenUnconfigured(t *testing.T) {
	l, err := newTestLogger()
	if err != nil {
		t.Fatalf("newTestLogger() error = %v", err)
	}

	cb := NewCoordinatorCallback(l, "", "", "host-1")
	// No server is started; a call here would error via the HTTP client
	// rather than hang, but we simply assert it returns without panicking.
	cb.PostEvents(context.Background(), []SlaveEvent{
		{HostUserName: "bob", EventType: "quota_exceeded"},
	})
}
