package transport

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records one observation per backend exchange.
type Metrics struct {
	Requests *prometheus.CounterVec   // garagedesk_backend_requests_total{endpoint,method,status}
	Duration *prometheus.HistogramVec // garagedesk_backend_request_duration_seconds{endpoint,method}
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered by an earlier client are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "garagedesk",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Backend HTTP exchanges by endpoint, method and status (0 for transport failures).",
		}, []string{"endpoint", "method", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "garagedesk",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend HTTP exchange latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
	}
	if reg == nil {
		return m
	}
	m.Requests = register(reg, m.Requests)
	m.Duration = register(reg, m.Duration)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) observe(endpoint, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	m.Duration.WithLabelValues(endpoint, method).Observe(elapsed.Seconds())
}
