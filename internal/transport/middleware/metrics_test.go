package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type recordedRequest struct {
	method, route string
	status        int
}

type requestRecorderStub struct {
	calls []recordedRequest
}

func (s *requestRecorderStub) RequestServed(method, route string, status int, _ time.Duration) {
	s.calls = append(s.calls, recordedRequest{method, route, status})
}

func TestMetrics_RecordsMatchedRoute(t *testing.T) {
	stub := &requestRecorderStub{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	h := Metrics(stub)(mux)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	want := []recordedRequest{
		{http.MethodGet, "GET /ready", http.StatusServiceUnavailable},
		{http.MethodGet, "unmatched", http.StatusNotFound},
	}
	if len(stub.calls) != len(want) {
		t.Fatalf("recorded %d requests, want %d", len(stub.calls), len(want))
	}
	for i := range want {
		if stub.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, stub.calls[i], want[i])
		}
	}
}
