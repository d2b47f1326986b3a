package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestCounterRecording(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionsEnded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "completed")))
	m.SessionsEnded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "completed")))
	m.SessionsEnded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "expired")))

	got := findMetric(t, reader, "cantogame.sessions.ended")
	if got == nil {
		t.Fatal("cantogame.sessions.ended not found")
	}
	sum, ok := got.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("data type = %T, want Sum[int64]", got.Data)
	}

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		reason, _ := dp.Attributes.Value("reason")
		counts[reason.AsString()] = dp.Value
	}
	if counts["completed"] != 2 || counts["expired"] != 1 {
		t.Errorf("counts = %v, want completed=2 expired=1", counts)
	}
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	m, reader := newTestMetrics(t)

	r := mux.NewRouter()
	r.Use(Middleware(m))
	r.HandleFunc("/api/games/{sessionId}/end", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/games/abc-123/end", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	got := findMetric(t, reader, "cantogame.http.request.duration")
	if got == nil {
		t.Fatal("http duration metric not found")
	}
	hist, ok := got.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("unexpected histogram data: %#v", got.Data)
	}
	dp := hist.DataPoints[0]
	route, _ := dp.Attributes.Value("route")
	status, _ := dp.Attributes.Value("status")
	if route.AsString() != "/api/games/{sessionId}/end" {
		t.Errorf("route = %q, want template", route.AsString())
	}
	if status.AsString() != "202" {
		t.Errorf("status = %q, want 202", status.AsString())
	}
	if dp.Count != 1 {
		t.Errorf("Count = %d, want 1", dp.Count)
	}
}

func TestDefaultMetricsIsSingleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics() returned different instances")
	}
}
