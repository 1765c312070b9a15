package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/taskbridge/internal/config"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OTEL{Enabled: false, Endpoint: "localhost:4317"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestMetricsWithNoopProvider(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	ctx := context.Background()
	m.CountMessage(ctx, true)
	m.CountMessage(ctx, false)
	m.CountDispatched(ctx, "translator")
	m.RecordResult(ctx, "translator", "", 0.5)
	m.RecordResult(ctx, "translator", "remote_unavailable", 1.5)

	var nilMetrics *Metrics
	nilMetrics.RecordResult(ctx, "x", "", 0)
	nilMetrics.CountDispatched(ctx, "x")
	nilMetrics.CountMessage(ctx, true)
}

func TestHTTPMiddlewarePassesThrough(t *testing.T) {
	h := HTTPMiddleware("taskbridge")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTracedFilter(t *testing.T) {
	tests := []struct {
		path    string
		upgrade string
		want    bool
	}{
		{"/health", "", false},
		{"/ws/task_1", "websocket", false},
		{"/api/v1/tasks", "", true},
		{"/task/task_1", "", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
		if tt.upgrade != "" {
			r.Header.Set("Upgrade", tt.upgrade)
		}
		if got := traced(r); got != tt.want {
			t.Errorf("traced(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
