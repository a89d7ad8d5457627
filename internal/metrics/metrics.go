package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rpggio/gradcredits/internal/repository"
)

const namespace = "gradcredits"

// Result labels.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultTimeout  = "timeout"
	ResultError    = "error"
)

// Metrics holds the collectors for sync, ledger and remote store RPC.
type Metrics struct {
	registry *prometheus.Registry

	syncOps      *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	ledgerSize   prometheus.Gauge
	ledgerCredit prometheus.Gauge
	rpcCalls     *prometheus.CounterVec
	rpcDuration  *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, plus the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		syncOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "operations_total",
			Help:      "Remote sync operations by op and result.",
		}, []string{"op", "result"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "operation_duration_seconds",
			Help:      "Duration of remote sync operations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		ledgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "entries",
			Help:      "Entries currently in the local ledger.",
		}),
		ledgerCredit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "graduation_credits",
			Help:      "Graduation credits currently recorded.",
		}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "rpc_calls_total",
			Help:      "Remote store JSON-RPC calls by method and error code.",
		}, []string{"method", "code"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "rpc_duration_seconds",
			Help:      "Remote store JSON-RPC latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(m.syncOps, m.syncDuration, m.ledgerSize, m.ledgerCredit, m.rpcCalls, m.rpcDuration)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSync implements reconcile.SyncObserver.
func (m *Metrics) ObserveSync(op string, elapsed time.Duration, err error) {
	m.syncOps.WithLabelValues(op, Classify(err)).Inc()
	m.syncDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveLedger implements tracker.LedgerObserver.
func (m *Metrics) ObserveLedger(entries int, graduationCredits float64) {
	m.ledgerSize.Set(float64(entries))
	m.ledgerCredit.Set(graduationCredits)
}

// ObserveRPC implements transport.RPCObserver.
func (m *Metrics) ObserveRPC(method string, code int, elapsed time.Duration) {
	m.rpcCalls.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Classify maps an operation error to a result label.
func Classify(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, repository.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return ResultTimeout
	}
	return ResultError
}
