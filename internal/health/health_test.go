package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func staticChecker(name string, status Status, message string) Checker {
	return NewStatusChecker(name, func() (Status, string) { return status, message })
}

func TestHandler_AggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
		wantCode int
	}{
		{name: "no checkers", want: StatusHealthy, wantCode: http.StatusOK},
		{name: "all healthy", statuses: []Status{StatusHealthy, StatusHealthy}, want: StatusHealthy, wantCode: http.StatusOK},
		{name: "degraded wins over healthy", statuses: []Status{StatusHealthy, StatusDegraded}, want: StatusDegraded, wantCode: http.StatusOK},
		{name: "unhealthy wins over degraded", statuses: []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, want: StatusUnhealthy, wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler("v1.0.0")
			for i, status := range tt.statuses {
				name := string(rune('a' + i))
				handler.RegisterChecker(name, staticChecker(name, status, ""))
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if w.Code != tt.wantCode {
				t.Fatalf("expected status code %d, got %d", tt.wantCode, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("unexpected content type %q", ct)
			}

			var response Response
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Status != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, response.Status)
			}
			if response.Version != "v1.0.0" {
				t.Fatalf("expected version v1.0.0, got %s", response.Version)
			}
			if len(response.Checks) != len(tt.statuses) {
				t.Fatalf("expected %d checks, got %d", len(tt.statuses), len(response.Checks))
			}
		})
	}
}

func TestHandler_RegisterReplacesChecker(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("document-store", staticChecker("document-store", StatusUnhealthy, "down"))
	handler.RegisterChecker("document-store", staticChecker("document-store", StatusHealthy, ""))

	checks, overall := handler.Evaluate()
	if overall != StatusHealthy {
		t.Fatalf("expected replaced checker to be used, got %s", overall)
	}
	if len(checks) != 1 {
		t.Fatalf("expected 1 check, got %d", len(checks))
	}
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Fatalf("expected body 'ok', got %q", w.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name         string
		checkers     map[string]Status
		wantCode     int
		wantReady    bool
		wantNotReady []string
	}{
		{
			name:      "ready",
			checkers:  map[string]Status{"document-store": StatusHealthy},
			wantCode:  http.StatusOK,
			wantReady: true,
		},
		{
			name:      "degraded mirror is still ready",
			checkers:  map[string]Status{"document-store": StatusHealthy, "catalog-mirror": StatusDegraded},
			wantCode:  http.StatusOK,
			wantReady: true,
		},
		{
			name:         "unhealthy components are listed",
			checkers:     map[string]Status{"document-store": StatusUnhealthy, "catalog-mirror": StatusUnhealthy, "other": StatusHealthy},
			wantCode:     http.StatusServiceUnavailable,
			wantNotReady: []string{"catalog-mirror", "document-store"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler("v1.0.0")
			for name, status := range tt.checkers {
				handler.RegisterChecker(name, staticChecker(name, status, ""))
			}

			w := httptest.NewRecorder()
			handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if w.Code != tt.wantCode {
				t.Fatalf("expected status code %d, got %d", tt.wantCode, w.Code)
			}
			var response ReadinessResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Ready != tt.wantReady {
				t.Fatalf("expected ready=%v, got %v", tt.wantReady, response.Ready)
			}
			if !reflect.DeepEqual(response.NotReady, tt.wantNotReady) {
				t.Fatalf("expected not_ready %v, got %v", tt.wantNotReady, response.NotReady)
			}
		})
	}
}

func TestSimpleChecker(t *testing.T) {
	healthy := NewSimpleChecker("document-store", func() error { return nil }).Check()
	if healthy.Status != StatusHealthy || healthy.Message != "" {
		t.Fatalf("unexpected healthy check: %+v", healthy)
	}
	if healthy.Name != "document-store" {
		t.Fatalf("unexpected name %q", healthy.Name)
	}

	failed := NewSimpleChecker("document-store", func() error { return errors.New("connection refused") }).Check()
	if failed.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", failed.Status)
	}
	if failed.Message != "connection refused" {
		t.Fatalf("expected error message, got %q", failed.Message)
	}
}

func TestStatusChecker(t *testing.T) {
	check := NewStatusChecker("catalog-mirror", func() (Status, string) {
		return StatusDegraded, "waiting for first snapshot"
	}).Check()

	if check.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", check.Status)
	}
	if check.Message != "waiting for first snapshot" {
		t.Fatalf("unexpected message %q", check.Message)
	}
	if check.DurationMs < 0 {
		t.Fatalf("duration must not be negative: %d", check.DurationMs)
	}
}
