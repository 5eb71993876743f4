package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector keeps ledger counters in a private registry. The ledger has no
// network listener, so metrics are exported with WriteTextfile for a
// node_exporter textfile collector.
type MetricsCollector struct {
	registry          *prometheus.Registry
	operations        *prometheus.CounterVec
	loginAttempts     *prometheus.CounterVec
	accounts          prometheus.Gauge
	outstandingChecks prometheus.Gauge
	fundsHeld         prometheus.Gauge
	mu                sync.Mutex
}

func NewMetricsCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()

	return &MetricsCollector{
		registry: registry,
		operations: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by audit action and outcome",
		}, []string{"action", "outcome"}),
		loginAttempts: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		accounts: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "ledger_accounts",
			Help: "Number of registered accounts",
		}),
		outstandingChecks: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "ledger_outstanding_checks",
			Help: "Number of issued checks not yet cleared",
		}),
		fundsHeld: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "ledger_funds_held",
			Help: "Sum of balances and outstanding check amounts",
		}),
	}
}

func (m *MetricsCollector) RecordOperation(action string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.operations.WithLabelValues(action, outcome).Inc()
}

func (m *MetricsCollector) RecordLogin(outcome string) {
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

func (m *MetricsCollector) UpdateLedgerState(accounts, outstandingChecks int, fundsHeld float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts.Set(float64(accounts))
	m.outstandingChecks.Set(float64(outstandingChecks))
	m.fundsHeld.Set(fundsHeld)
}

func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile replaces path with the current registry contents.
func (m *MetricsCollector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
