package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetHealth(t *testing.T) {
	h := NewHandler(nil)

	w := httptest.NewRecorder()
	h.GetHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	h.MarkUnhealthy()
	w = httptest.NewRecorder()
	h.GetHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 once unhealthy, got %d", w.Code)
	}
}

func TestGetReady(t *testing.T) {
	h := NewHandler(map[string]Check{
		"mongo": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	w := httptest.NewRecorder()
	h.GetReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Checks["mongo"] != "ok" || resp.Checks["redis"] != "connection refused" {
		t.Fatalf("unexpected checks %+v", resp.Checks)
	}
}
