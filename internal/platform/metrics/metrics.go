package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus instruments for the segment correlator.
type Metrics struct {
	registry *prometheus.Registry

	pollsTotal        *prometheus.CounterVec
	fragmentsTotal    *prometheus.CounterVec
	watermarkDeploys  prometheus.Counter
	watermarkVerified prometheus.Counter
	feedSwitchesTotal prometheus.Counter
	currentSegment    prometheus.Gauge
	snapshotStale     prometheus.Gauge
	httpRequestsTotal *prometheus.CounterVec
}

// New creates and registers the correlator's metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "correlator_status_polls_total",
			Help: "Status poll outcomes, by result (success or failure)",
		}, []string{"result"}),
		fragmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "correlator_fragments_total",
			Help: "Fragment-change notifications, by outcome (observed or unparsed)",
		}, []string{"outcome"}),
		watermarkDeploys: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "correlator_watermark_deploys_total",
			Help: "Number of armed deployment watermarks",
		}),
		watermarkVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "correlator_watermark_verified_total",
			Help: "Number of watermark crossings detected in playback",
		}),
		feedSwitchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "correlator_feed_switches_total",
			Help: "Number of feed session switches",
		}),
		currentSegment: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "correlator_current_segment",
			Help: "Segment id currently playing on the active feed",
		}),
		snapshotStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "correlator_snapshot_stale",
			Help: "1 while the most recent status poll failed, else 0",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "correlator_http_requests_total",
			Help: "HTTP requests served, by status code class",
		}, []string{"code"}),
	}

	registry.MustRegister(
		m.pollsTotal,
		m.fragmentsTotal,
		m.watermarkDeploys,
		m.watermarkVerified,
		m.feedSwitchesTotal,
		m.currentSegment,
		m.snapshotStale,
		m.httpRequestsTotal,
	)
	return m
}

// IncPollSuccesses records a successful status poll.
func (m *Metrics) IncPollSuccesses() {
	m.pollsTotal.WithLabelValues("success").Inc()
}

// IncPollFailures records a failed status poll.
func (m *Metrics) IncPollFailures() {
	m.pollsTotal.WithLabelValues("failure").Inc()
}

// IncFragmentsObserved records a fragment notification with a usable id.
func (m *Metrics) IncFragmentsObserved() {
	m.fragmentsTotal.WithLabelValues("observed").Inc()
}

// IncFragmentsUnparsed records a fragment notification with no usable id.
func (m *Metrics) IncFragmentsUnparsed() {
	m.fragmentsTotal.WithLabelValues("unparsed").Inc()
}

// IncWatermarkDeploys records an armed watermark.
func (m *Metrics) IncWatermarkDeploys() {
	m.watermarkDeploys.Inc()
}

// IncWatermarkVerified records a watermark crossing.
func (m *Metrics) IncWatermarkVerified() {
	m.watermarkVerified.Inc()
}

// IncFeedSwitches records a feed session switch.
func (m *Metrics) IncFeedSwitches() {
	m.feedSwitchesTotal.Inc()
}

// SetCurrentSegment updates the currently playing segment gauge.
func (m *Metrics) SetCurrentSegment(id int64) {
	m.currentSegment.Set(float64(id))
}

// SetSnapshotStale updates the staleness gauge.
func (m *Metrics) SetSnapshotStale(stale bool) {
	if stale {
		m.snapshotStale.Set(1)
	} else {
		m.snapshotStale.Set(0)
	}
}

// Handler returns an http.Handler serving the registry. updateGauges runs
// before each scrape so gauges reflect the moment of scraping.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
