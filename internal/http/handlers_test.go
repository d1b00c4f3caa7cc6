package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/restkit/scaffold/internal/lifecycle"
)

func getHealth(h *HealthHandler) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	h.GetHealth(w, httptest.NewRequest("GET", "/health", nil))
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

// TestGetHealth_Healthy verifies the 200 response shape.
func TestGetHealth_Healthy(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	w, body := getHealth(h)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", body["status"])
	}
	if body["service"] != "scaffold" {
		t.Errorf("service field = %v, want scaffold", body["service"])
	}
	if _, ok := body["timestamp"]; !ok {
		t.Error("response should carry a timestamp")
	}
}

// TestGetHealth_ShuttingDown verifies the 503 during drain.
func TestGetHealth_ShuttingDown(t *testing.T) {
	lifecycle.SetShuttingDown(true)
	t.Cleanup(func() { lifecycle.SetShuttingDown(false) })

	h := NewHealthHandler(zap.NewNop())
	w, body := getHealth(h)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if body["status"] != "shutting-down" {
		t.Errorf("status field = %v, want shutting-down", body["status"])
	}
}

// TestGetHealth_CacheUnreachable verifies the degraded state and the cache
// check in the response.
func TestGetHealth_CacheUnreachable(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.CachePing = func() error { return errors.New("connection refused") }

	w, body := getHealth(h)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if body["status"] != "degraded" {
		t.Errorf("status field = %v, want degraded", body["status"])
	}
	checks, _ := body["checks"].(map[string]interface{})
	if checks["cache"] != "unhealthy" {
		t.Errorf("cache check = %v, want unhealthy", checks["cache"])
	}
}

// TestGetHealth_CacheHealthy verifies the cache check on the healthy path.
func TestGetHealth_CacheHealthy(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.CachePing = func() error { return nil }

	w, body := getHealth(h)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	checks, _ := body["checks"].(map[string]interface{})
	if checks["cache"] != "healthy" {
		t.Errorf("cache check = %v, want healthy", checks["cache"])
	}
}

// TestGetHealth_LogsTransition verifies the single transition log when the
// status changes between requests.
func TestGetHealth_LogsTransition(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewHealthHandler(zap.New(core))

	// healthy -> healthy: no transition log
	getHealth(h)
	getHealth(h)
	if logs.FilterMessage("health status transition").Len() != 0 {
		t.Fatal("no transition expected while status is stable")
	}

	// healthy -> shutting-down: one transition log
	lifecycle.SetShuttingDown(true)
	t.Cleanup(func() { lifecycle.SetShuttingDown(false) })
	getHealth(h)

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != "healthy" || fields["current_status"] != "shutting-down" {
		t.Errorf("transition fields = %v", fields)
	}
}
