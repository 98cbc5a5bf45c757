package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func checkOK(context.Context) error { return nil }

func checkErr(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestLive_Always200(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler("test-version", Check{Name: "database", Run: checkErr(errors.New("down"))})

	rec := httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got %q", resp.Status)
	}
	if resp.Timestamp.IsZero() {
		t.Error("expected non-zero timestamp")
	}
}

func TestReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     []Check
		wantCode   int
		wantStatus string
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "all up",
			checks: []Check{
				{Name: "database", Run: checkOK},
				{Name: "event_log", Run: checkOK},
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "event log unreadable",
			checks: []Check{
				{Name: "database", Run: checkOK},
				{Name: "event_log", Run: checkErr(errors.New(`relation "domain_events" does not exist`))},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewHealthHandler("test-version", tt.checks...)

			rec := httptest.NewRecorder()
			h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			resp := decodeHealth(t, rec)
			if resp.Status != tt.wantStatus {
				t.Errorf("expected status %q, got %q", tt.wantStatus, resp.Status)
			}
			if resp.Components != nil {
				t.Errorf("ready must not list components, got %v", resp.Components)
			}
		})
	}
}

func TestHealth_AllOK(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler("v1.0.0",
		Check{Name: "database", Backend: "postgres", Run: checkOK},
		Check{Name: "event_log", Backend: "postgres", Run: checkOK},
	)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got %q", resp.Status)
	}
	if resp.Version != "v1.0.0" {
		t.Errorf("expected version 'v1.0.0', got %q", resp.Version)
	}
	for _, name := range []string{"database", "event_log"} {
		comp, ok := resp.Components[name]
		if !ok {
			t.Fatalf("expected %q component in response", name)
		}
		if comp.Status != "ok" || comp.Backend != "postgres" {
			t.Errorf("%s = %+v, want ok on postgres", name, comp)
		}
		if comp.Latency == "" {
			t.Errorf("expected non-empty latency for %s", name)
		}
	}
}

func TestHealth_ComponentDown(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler("v1.0.0",
		Check{Name: "database", Backend: "postgres", Run: checkErr(errors.New("connection refused"))},
		Check{Name: "event_log", Backend: "postgres", Run: checkOK},
	)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Status != "down" {
		t.Errorf("expected status 'down', got %q", resp.Status)
	}
	db := resp.Components["database"]
	if db.Status != "down" || db.Latency != "" {
		t.Errorf("database = %+v, want down without latency", db)
	}
	if resp.Components["event_log"].Status != "ok" {
		t.Errorf("event_log = %+v, want ok", resp.Components["event_log"])
	}
}

func TestHealth_CheckGetsDeadline(t *testing.T) {
	t.Parallel()

	var hasDeadline bool
	h := NewHealthHandler("v", Check{Name: "database", Run: func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}})

	h.Health(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if !hasDeadline {
		t.Error("check context has no deadline")
	}
}
