package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func healthyCheck(context.Context) Check {
	return Check{Status: StatusHealthy, Timestamp: time.Now()}
}

func unhealthyCheck(context.Context) Check {
	return Check{
		Status:    StatusUnhealthy,
		Timestamp: time.Now(),
		Details:   map[string]any{"reason": "bucket unreachable"},
	}
}

func TestChecker_Run(t *testing.T) {
	checker := NewChecker()
	checker.Register("storage", healthyCheck)
	checker.Register("staging", unhealthyCheck)

	results := checker.Run(context.Background())

	if len(results) != 2 {
		t.Fatalf("Run() returned %d results, want 2", len(results))
	}
	if results["storage"].Status != StatusHealthy {
		t.Errorf("storage status = %s", results["storage"].Status)
	}
	if results["staging"].Status != StatusUnhealthy {
		t.Errorf("staging status = %s", results["staging"].Status)
	}
}

func TestChecker_Handler(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantCode   int
		wantStatus Status
	}{
		{
			name:       "all healthy",
			checks:     map[string]CheckFunc{"storage": healthyCheck},
			wantCode:   http.StatusOK,
			wantStatus: StatusHealthy,
		},
		{
			name: "one unhealthy",
			checks: map[string]CheckFunc{
				"storage": healthyCheck,
				"staging": unhealthyCheck,
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusUnhealthy,
		},
		{
			name:       "no checks registered",
			checks:     nil,
			wantCode:   http.StatusOK,
			wantStatus: StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker()
			for name, check := range tt.checks {
				checker.Register(name, check)
			}

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			checker.Handler()(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var body struct {
				Status Status `json:"status"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("overall status = %s, want %s", body.Status, tt.wantStatus)
			}
		})
	}
}
