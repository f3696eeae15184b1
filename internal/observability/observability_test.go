package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/jkaninda/kazi/internal/llm"
)

func counterValue(t *testing.T, m *MetricsCollector, name string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
		}
	}
	return total
}

func histogramCount(t *testing.T, m *MetricsCollector, name string) uint64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}
	var total uint64
	for _, mf := range families {
		if mf.GetName() != name || mf.GetType() != dto.MetricType_HISTOGRAM {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetHistogram().GetSampleCount()
		}
	}
	return total
}

type fakeProvider struct {
	err error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) SendMessage(_ context.Context, _ *llm.Request) (*llm.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{
		Content: "ok",
		Usage:   llm.Usage{InputTokens: 10, OutputTokens: 5},
	}, nil
}

func TestInstrumentedProvider_RecordsMetrics(t *testing.T) {
	metrics := NewMetricsCollector()
	provider := NewInstrumentedProvider(&fakeProvider{}, metrics, nil, nil)

	if _, err := provider.SendMessage(context.Background(), &llm.Request{}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if got := counterValue(t, metrics, "kazi_llm_requests_total"); got != 1 {
		t.Errorf("requests_total = %v, want 1", got)
	}
	if got := counterValue(t, metrics, "kazi_llm_tokens_used_total"); got != 15 {
		t.Errorf("tokens_used_total = %v, want 15", got)
	}
}

func TestInstrumentedProvider_PropagatesErrors(t *testing.T) {
	metrics := NewMetricsCollector()
	wantErr := errors.New("provider down")
	provider := NewInstrumentedProvider(&fakeProvider{err: wantErr}, metrics, nil, nil)

	if _, err := provider.SendMessage(context.Background(), &llm.Request{}); !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
	if got := counterValue(t, metrics, "kazi_llm_requests_total"); got != 1 {
		t.Errorf("requests_total = %v, want 1", got)
	}
}

func TestInstrumentedProvider_StreamsViaAdapter(t *testing.T) {
	provider := NewInstrumentedProvider(&fakeProvider{}, nil, nil, nil)

	events := make(chan llm.StreamEvent, 8)
	if err := provider.StreamMessage(context.Background(), &llm.Request{}, events); err != nil {
		t.Fatalf("StreamMessage: %v", err)
	}

	var sawDone bool
	for ev := range events {
		if ev.Type == "done" {
			sawDone = true
		}
	}
	if !sawDone {
		t.Error("expected a done event from the buffered replay")
	}
}

func TestObserveTool(t *testing.T) {
	metrics := NewMetricsCollector()

	metrics.ObserveTool("add_task", 5*time.Millisecond, true)
	metrics.ObserveTool("add_task", 5*time.Millisecond, false)

	if got := counterValue(t, metrics, "kazi_tool_executions_total"); got != 2 {
		t.Errorf("executions_total = %v, want 2", got)
	}
	if got := histogramCount(t, metrics, "kazi_tool_execution_duration_seconds"); got != 2 {
		t.Errorf("duration samples = %v, want 2", got)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	metrics := NewMetricsCollector()

	handler := HTTPMetricsMiddleware(metrics, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := counterValue(t, metrics, "kazi_http_requests_total"); got != 1 {
		t.Errorf("http requests_total = %v, want 1", got)
	}
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	handler := HTTPMetricsMiddleware(nil, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker(nil)

	if status := h.CheckReady(context.Background()); status.Status != "ok" {
		t.Fatalf("no checks: status = %q", status.Status)
	}

	h.AddCheck("db", func(ctx context.Context) error { return nil })
	h.AddCheck("llm", func(ctx context.Context) error { return errors.New("unreachable") })

	status := h.CheckReady(context.Background())
	if status.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", status.Status)
	}
	if status.Checks["db"].Status != "ok" || status.Checks["llm"].Status != "fail" {
		t.Errorf("checks = %+v", status.Checks)
	}
	if status.Checks["llm"].Message != "unreachable" {
		t.Errorf("failure message = %q", status.Checks["llm"].Message)
	}
	if status.Uptime == "" {
		t.Error("expected an uptime")
	}
}

func TestObservabilityNilSafety(t *testing.T) {
	var o *Observability

	inner := &fakeProvider{}
	if got := o.WrapProvider(inner); got != llm.Provider(inner) {
		t.Error("nil observability must hand the provider back unwrapped")
	}
	if hook := o.ToolObserver(); hook != nil {
		t.Error("nil observability must not produce a tool observer")
	}
}
