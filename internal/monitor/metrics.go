package monitor

import (
	"net/http"
	"time"

	"github.com/berfenger/scpiconsole/pkg/scpi"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	RESULT_OK    = "ok"
	RESULT_ERROR = "error"
)

// SessionMetrics exports device session activity.
type SessionMetrics struct {
	registry *prometheus.Registry

	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec
	Bytes             *prometheus.CounterVec
	Connected         prometheus.Gauge
}

func NewSessionMetrics() *SessionMetrics {
	m := &SessionMetrics{
		registry: prometheus.NewRegistry(),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scpi_session_operation_duration_seconds",
			Help:    "Duration of device session operations",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"op", "result"}),
		OperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scpi_session_operation_errors_total",
			Help: "Failed device session operations by error kind",
		}, []string{"op", "kind"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scpi_session_bytes_total",
			Help: "Bytes written to and read from the instrument",
		}, []string{"op"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scpi_session_connected",
			Help: "1 while a connection to the instrument is held",
		}),
	}

	m.registry.MustRegister(
		m.OperationDuration,
		m.OperationErrors,
		m.Bytes,
		m.Connected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Instrument returns the hooks to install on a scpi.DeviceSession.
func (m *SessionMetrics) Instrument() scpi.SessionInstrument {
	return scpi.SessionInstrument{
		RecordTime: m.recordTime,
		RecordBytes: func(op string, n int) {
			m.Bytes.WithLabelValues(op).Add(float64(n))
		},
	}
}

func (m *SessionMetrics) recordTime(op string, d time.Duration, err error) {
	result := RESULT_OK
	if err != nil {
		result = RESULT_ERROR
		m.OperationErrors.WithLabelValues(op, scpi.ErrorKind(err).String()).Inc()
	}
	m.OperationDuration.WithLabelValues(op, result).Observe(d.Seconds())

	if op == "connect" {
		if err == nil {
			m.Connected.Set(1)
		} else {
			m.Connected.Set(0)
		}
	}
}

func (m *SessionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *SessionMetrics) Registry() *prometheus.Registry {
	return m.registry
}
