// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/invoiceflow/mailscanner/internal/scheduler"
)

// mockScheduler tracks control calls.
type mockScheduler struct {
	mu        sync.Mutex
	running   bool
	triggered int
	startCtx  context.Context
}

func (m *mockScheduler) Start(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return false
	}
	m.running = true
	m.startCtx = ctx
	return true
}

func (m *mockScheduler) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return false
	}
	m.running = false
	return true
}

func (m *mockScheduler) Status() scheduler.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return scheduler.Status{Running: m.running, Interval: 10 * time.Minute, Runs: 3}
}

func (m *mockScheduler) TriggerNow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggered++
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func do(t *testing.T, h http.Handler, method, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	h.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s %s: invalid JSON %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, body
}

// TestServer_Root verifies the service summary.
func TestServer_Root(t *testing.T) {
	srv := NewServer(NewHandler(context.Background(), &mockScheduler{}, nil))

	code, body := do(t, srv, http.MethodGet, "/")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["service"] != ServiceName || body["scheduler_status"] != "stopped" {
		t.Errorf("body = %v", body)
	}
	if body["scheduler_interval_minutes"] != float64(10) {
		t.Errorf("interval = %v", body["scheduler_interval_minutes"])
	}
}

// TestServer_SchedulerLifecycle verifies start/stop responses.
func TestServer_SchedulerLifecycle(t *testing.T) {
	type ctxKey struct{}
	base := context.WithValue(context.Background(), ctxKey{}, "base")
	sched := &mockScheduler{}
	srv := NewServer(NewHandler(base, sched, nil))

	steps := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/scheduler/stop", "not_running"},
		{http.MethodPost, "/scheduler/start", "success"},
		{http.MethodPost, "/scheduler/start", "already_running"},
		{http.MethodPost, "/scheduler/stop", "success"},
	}
	for _, s := range steps {
		_, body := do(t, srv, s.method, s.path)
		if body["status"] != s.want {
			t.Errorf("%s %s: status = %v, want %s", s.method, s.path, body["status"], s.want)
		}
	}

	if sched.startCtx == nil || sched.startCtx.Value(ctxKey{}) != "base" {
		t.Error("scheduler should be started with the service context, not the request context")
	}
}

// TestServer_SchedulerStatus verifies the status payload.
func TestServer_SchedulerStatus(t *testing.T) {
	sched := &mockScheduler{running: true}
	srv := NewServer(NewHandler(context.Background(), sched, nil))

	_, body := do(t, srv, http.MethodGet, "/scheduler/status")
	if body["running"] != true || body["status"] != "running" || body["runs"] != float64(3) {
		t.Errorf("body = %v", body)
	}
	if body["last_run_at"] != nil {
		t.Errorf("last_run_at = %v, want null", body["last_run_at"])
	}
}

// TestServer_TriggerScan verifies the scan is handed off without waiting.
func TestServer_TriggerScan(t *testing.T) {
	sched := &mockScheduler{}
	srv := NewServer(NewHandler(context.Background(), sched, nil))

	code, body := do(t, srv, http.MethodPost, "/scan")
	if code != http.StatusOK || body["status"] != "success" {
		t.Errorf("code = %d body = %v", code, body)
	}
	if sched.triggered != 1 {
		t.Errorf("triggered = %d, want 1", sched.triggered)
	}
}

// TestServer_Health verifies dependency failures return 503 without details.
func TestServer_Health(t *testing.T) {
	ok := pingFunc(func(ctx context.Context) error { return nil })
	bad := pingFunc(func(ctx context.Context) error { return errors.New("dial tcp 10.0.0.1:5432: i/o timeout") })

	srv := NewServer(NewHandler(context.Background(), &mockScheduler{}, map[string]Pinger{"postgres": ok}))
	code, body := do(t, srv, http.MethodGet, "/health")
	if code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("healthy: code = %d body = %v", code, body)
	}

	srv = NewServer(NewHandler(context.Background(), &mockScheduler{}, map[string]Pinger{"postgres": ok, "redis": bad}))
	code, body = do(t, srv, http.MethodGet, "/health")
	if code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503", code)
	}
	deps := body["dependencies"].(map[string]any)
	if deps["redis"] != "unhealthy" || deps["postgres"] != "healthy" {
		t.Errorf("dependencies = %v", deps)
	}
}
