package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "walletbridge"

// Resolution outcomes
const (
	ResolutionInjected    = "injected"
	ResolutionDeepLink    = "deeplink"
	ResolutionInstall     = "install"
	ResolutionUnavailable = "unavailable"
	ResolutionError       = "error"
)

// Metrics holds the collectors for wallet operations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	resolutionsTotal *prometheus.CounterVec
	completionsTotal *prometheus.CounterVec
	transfersTotal   *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
	balanceQueries   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Collectors already registered on reg are reused.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "resolutions_total",
				Help:      "Total number of provider resolutions by outcome",
			},
			[]string{"wallet", "outcome"},
		),
		completionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "redirect_completions_total",
				Help:      "Total number of completed deep-link or install redirects",
			},
			[]string{"wallet", "status"}, // available, unavailable
		),
		transfersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transfer",
				Name:      "submissions_total",
				Help:      "Total number of native transfer submissions",
			},
			[]string{"wallet", "status"}, // success or a failure reason
		),
		transferDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "transfer",
				Name:      "duration_seconds",
				Help:      "Time from submission start to confirmation or failure",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
			},
			[]string{"wallet"},
		),
		balanceQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "balance",
				Name:      "queries_total",
				Help:      "Total number of spendable balance queries",
			},
			[]string{"status"}, // success, error
		),
	}

	if reg == nil {
		return m
	}

	m.resolutionsTotal = register(reg, m.resolutionsTotal)
	m.completionsTotal = register(reg, m.completionsTotal)
	m.transfersTotal = register(reg, m.transfersTotal)
	m.transferDuration = register(reg, m.transferDuration)
	m.balanceQueries = register(reg, m.balanceQueries)
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

// RecordResolution records the outcome of a provider resolution
func (m *Metrics) RecordResolution(wallet, outcome string) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(wallet, outcome).Inc()
}

// RecordCompletion records a redirect completion
func (m *Metrics) RecordCompletion(wallet string, available bool) {
	if m == nil {
		return
	}
	status := "available"
	if !available {
		status = "unavailable"
	}
	m.completionsTotal.WithLabelValues(wallet, status).Inc()
}

// RecordTransfer records a finished submission. status is "success" or the failure reason.
func (m *Metrics) RecordTransfer(wallet, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(wallet, status).Inc()
	m.transferDuration.WithLabelValues(wallet).Observe(duration.Seconds())
}

// RecordBalanceQuery records a balance lookup
func (m *Metrics) RecordBalanceQuery(success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.balanceQueries.WithLabelValues(status).Inc()
}
