package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges
	connectionsActive prometheus.Gauge
	camerasOnline     prometheus.Gauge
	roomsActive       prometheus.Gauge

	// Counters
	connectionsTotal  prometheus.Counter
	messagesRelayed   *prometheus.CounterVec
	joinsRejected     *prometheus.CounterVec
	loginAttemptsSeen *prometheus.CounterVec

	// Histograms
	sessionDuration prometheus.Histogram
	messageHandling prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "camsignal_connections_active",
			Help: "Number of live signaling connections",
		}),

		camerasOnline: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "camsignal_cameras_online",
			Help: "Number of cameras currently registered in the directory",
		}),

		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "camsignal_rooms_active",
			Help: "Number of rooms with at least one peer",
		}),

		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "camsignal_connections_total",
			Help: "Total number of signaling connections accepted",
		}),

		messagesRelayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "camsignal_messages_total",
			Help: "Total signaling messages handled by type",
		}, []string{"type"}),

		joinsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "camsignal_join_rejections_total",
			Help: "Room join attempts rejected by reason code",
		}, []string{"reason"}),

		loginAttemptsSeen: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "camsignal_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),

		sessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "camsignal_session_duration_seconds",
			Help:    "Duration of signaling sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),

		messageHandling: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "camsignal_message_handling_seconds",
			Help:    "Time spent handling a single signaling message",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
}

func (p *PrometheusCollector) RecordConnectionOpened() {
	p.connectionsActive.Inc()
	p.connectionsTotal.Inc()
}

func (p *PrometheusCollector) RecordConnectionClosed() {
	p.connectionsActive.Dec()
}

func (p *PrometheusCollector) RecordCameraRegistered() {
	p.camerasOnline.Inc()
}

func (p *PrometheusCollector) RecordCameraUnregistered() {
	p.camerasOnline.Dec()
}

func (p *PrometheusCollector) SetActiveRooms(count int) {
	p.roomsActive.Set(float64(count))
}

func (p *PrometheusCollector) RecordMessage(messageType string) {
	p.messagesRelayed.WithLabelValues(messageType).Inc()
}

func (p *PrometheusCollector) RecordJoinRejected(reason string) {
	p.joinsRejected.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) RecordLoginAttempt(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	p.loginAttemptsSeen.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) RecordSessionDuration(d time.Duration) {
	p.sessionDuration.Observe(d.Seconds())
}

func (p *PrometheusCollector) RecordMessageHandling(d time.Duration) {
	p.messageHandling.Observe(d.Seconds())
}
