package observability

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Metrics holds the studio's counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	apiRequests    *CounterVec
	apiLatency     *HistogramVec
	apiInflight    *Gauge
	generations    *CounterVec
	generationTime *HistogramVec
	extractions    *CounterVec
	progressEvents *CounterVec
	imageFills     *CounterVec
	sessions       *Gauge
	sseClients     *Gauge

	all []collector
}

func MetricsEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func NewMetrics() *Metrics {
	m := &Metrics{
		apiRequests:    NewCounterVec("studio_api_requests_total", "HTTP requests by method, route and status.", "method", "route", "status"),
		apiLatency:     NewHistogramVec("studio_api_request_seconds", "HTTP request latency.", nil, "method", "route"),
		apiInflight:    NewGauge("studio_api_inflight_requests", "HTTP requests in flight."),
		generations:    NewCounterVec("studio_generations_total", "Settled generation runs by status and failing step.", "status", "step"),
		generationTime: NewHistogramVec("studio_generation_seconds", "Generation run duration.", []float64{1, 5, 15, 30, 60, 120, 300, 600}, "status"),
		extractions:    NewCounterVec("studio_extractions_total", "Text extractions by format and status.", "format", "status"),
		progressEvents: NewCounterVec("studio_progress_events_total", "Live progress channel events by status.", "status"),
		imageFills:     NewCounterVec("studio_slide_images_total", "Slide images by outcome.", "outcome"),
		sessions:       NewGauge("studio_workspace_sessions", "Live workspace sessions."),
		sseClients:     NewGauge("studio_sse_clients", "Connected SSE clients."),
	}
	m.all = []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.generations, m.generationTime, m.extractions,
		m.progressEvents, m.imageFills, m.sessions, m.sseClients,
	}
	return m
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflight(delta float64) {
	if m != nil {
		m.apiInflight.Add(delta)
	}
}

func (m *Metrics) ObserveGeneration(status, step string, dur time.Duration) {
	if m == nil {
		return
	}
	if step == "" {
		step = "none"
	}
	m.generations.Inc(status, step)
	m.generationTime.Observe(dur.Seconds(), status)
}

func (m *Metrics) ObserveExtraction(format, status string) {
	if m != nil {
		m.extractions.Inc(format, status)
	}
}

func (m *Metrics) ObserveProgressEvent(status string) {
	if m != nil {
		m.progressEvents.Inc(status)
	}
}

func (m *Metrics) ObserveSlideImages(applied, failed int) {
	if m == nil {
		return
	}
	m.imageFills.s.add(float64(applied), []string{"applied"})
	m.imageFills.s.add(float64(failed), []string{"failed"})
}

func (m *Metrics) SetSessions(n int) {
	if m != nil {
		m.sessions.Set(float64(n))
	}
}

func (m *Metrics) SSEClients(delta float64) {
	if m != nil {
		m.sseClients.Add(delta)
	}
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.all {
		if err := c.writeTo(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}
