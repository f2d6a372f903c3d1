package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the spectrum service.
// A nil *Metrics is valid; every recorder becomes a no-op.
type Metrics struct {
	// Capture metrics
	CaptureCallbacks prometheus.Counter
	CaptureSamples   prometheus.Counter
	CaptureErrors    prometheus.Counter

	// UDP ingest metrics
	PacketsReceived  prometheus.Counter
	PacketsProcessed prometheus.Counter
	ParseErrors      prometheus.Counter
	PacketsDropped   *prometheus.CounterVec

	// Analysis metrics
	AnalysisFrames   prometheus.Counter
	AnalysisDuration prometheus.Histogram
	NormalizerPeak   prometheus.Gauge

	// Broadcast metrics
	BroadcastTicks       prometheus.Counter
	ActiveSubscribers    prometheus.Gauge
	SubscribersConnected prometheus.Counter
	SubscribersRemoved   *prometheus.CounterVec
	FramesDelivered      prometheus.Counter
	FramesDropped        prometheus.Counter
	DeliveryDuration     prometheus.Histogram

	// Track API metrics
	TrackUpdates prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them through promhttp.Handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Capture metrics
		CaptureCallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_capture_callbacks_total",
			Help: "Total number of capture callbacks delivered to the pipeline",
		}),
		CaptureSamples: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_capture_samples_total",
			Help: "Total number of mono samples appended to the sample buffer",
		}),
		CaptureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_capture_errors_total",
			Help: "Total number of fatal capture errors reported by sources",
		}),

		// UDP ingest metrics
		PacketsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_udp_packets_received_total",
			Help: "Total number of UDP PCM packets received",
		}),
		PacketsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_udp_packets_processed_total",
			Help: "Total number of UDP PCM packets successfully processed",
		}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_udp_parse_errors_total",
			Help: "Total number of UDP packet parsing errors",
		}),
		PacketsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audioviz_udp_packets_dropped_total",
			Help: "Total number of UDP packets dropped after parsing",
		}, []string{"reason"}),

		// Analysis metrics
		AnalysisFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_analysis_frames_total",
			Help: "Total number of analysis windows processed",
		}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audioviz_analysis_duration_seconds",
			Help:    "Time spent windowing, transforming and banding one analysis window",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12), // 10us to ~20ms
		}),
		NormalizerPeak: factory.NewGauge(prometheus.GaugeOpts{
			Name: "audioviz_normalizer_peak",
			Help: "Current value of the adaptive peak tracker",
		}),

		// Broadcast metrics
		BroadcastTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_broadcast_ticks_total",
			Help: "Total number of broadcast ticks",
		}),
		ActiveSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "audioviz_active_subscribers",
			Help: "Current number of connected spectrum subscribers",
		}),
		SubscribersConnected: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_subscribers_connected_total",
			Help: "Total number of subscribers that connected",
		}),
		SubscribersRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audioviz_subscribers_removed_total",
			Help: "Total number of subscribers removed",
		}, []string{"reason"}),
		FramesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_frames_delivered_total",
			Help: "Total number of spectrum frames written to subscribers",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_frames_dropped_total",
			Help: "Total number of stale frames replaced before a slow subscriber wrote them",
		}),
		DeliveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audioviz_delivery_duration_seconds",
			Help:    "Time spent writing one frame to one subscriber",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~200ms
		}),

		// Track API metrics
		TrackUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_track_updates_total",
			Help: "Total number of now-playing updates accepted",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audioviz_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audioviz_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audioviz_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordCapture records one capture callback carrying monoSamples samples
func (m *Metrics) RecordCapture(monoSamples int) {
	if m == nil {
		return
	}
	m.CaptureCallbacks.Inc()
	m.CaptureSamples.Add(float64(monoSamples))
}

// RecordCaptureError increments the capture errors counter
func (m *Metrics) RecordCaptureError() {
	if m == nil {
		return
	}
	m.CaptureErrors.Inc()
}

// RecordPacketReceived increments the packets received counter
func (m *Metrics) RecordPacketReceived() {
	if m == nil {
		return
	}
	m.PacketsReceived.Inc()
}

// RecordPacketProcessed increments the packets processed counter
func (m *Metrics) RecordPacketProcessed() {
	if m == nil {
		return
	}
	m.PacketsProcessed.Inc()
}

// RecordParseError increments the parse errors counter
func (m *Metrics) RecordParseError() {
	if m == nil {
		return
	}
	m.ParseErrors.Inc()
}

// RecordPacketDropped records a parsed packet that was not delivered
func (m *Metrics) RecordPacketDropped(reason string) {
	if m == nil {
		return
	}
	m.PacketsDropped.WithLabelValues(reason).Inc()
}

// RecordAnalysis records one analysis window
func (m *Metrics) RecordAnalysis(durationSeconds float64) {
	if m == nil {
		return
	}
	m.AnalysisFrames.Inc()
	m.AnalysisDuration.Observe(durationSeconds)
}

// SetNormalizerPeak sets the current peak tracker value
func (m *Metrics) SetNormalizerPeak(peak float64) {
	if m == nil {
		return
	}
	m.NormalizerPeak.Set(peak)
}

// RecordBroadcastTick increments the broadcast ticks counter
func (m *Metrics) RecordBroadcastTick() {
	if m == nil {
		return
	}
	m.BroadcastTicks.Inc()
}

// SetActiveSubscribers sets the current number of subscribers
func (m *Metrics) SetActiveSubscribers(count int) {
	if m == nil {
		return
	}
	m.ActiveSubscribers.Set(float64(count))
}

// RecordSubscriberConnected increments the connected subscribers counter
func (m *Metrics) RecordSubscriberConnected() {
	if m == nil {
		return
	}
	m.SubscribersConnected.Inc()
}

// RecordSubscriberRemoved records why a subscriber left the set
func (m *Metrics) RecordSubscriberRemoved(reason string) {
	if m == nil {
		return
	}
	m.SubscribersRemoved.WithLabelValues(reason).Inc()
}

// RecordFrameDelivered records one successful subscriber write
func (m *Metrics) RecordFrameDelivered(durationSeconds float64) {
	if m == nil {
		return
	}
	m.FramesDelivered.Inc()
	m.DeliveryDuration.Observe(durationSeconds)
}

// RecordFrameDropped increments the dropped frames counter
func (m *Metrics) RecordFrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

// RecordTrackUpdate increments the track updates counter
func (m *Metrics) RecordTrackUpdate() {
	if m == nil {
		return
	}
	m.TrackUpdates.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
