package observability

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records quote and liquidation activity plus the last
// persisted pool snapshot.
type EngineMetrics struct {
	quotes       *prometheus.CounterVec
	errors       *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	liquidations *prometheus.CounterVec

	poolBalance prometheus.Gauge
	poolLentOut prometheus.Gauge
	poolShares  prometheus.Gauge
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// Engine returns the lazily-initialised engine metrics registry.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendpool",
				Subsystem: "engine",
				Name:      "quotes_total",
				Help:      "Total quote evaluations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendpool",
				Subsystem: "engine",
				Name:      "errors_total",
				Help:      "Total quote evaluation failures segmented by operation.",
			}, []string{"operation"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lendpool",
				Subsystem: "engine",
				Name:      "quote_duration_seconds",
				Help:      "Latency distribution for quote evaluations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendpool",
				Subsystem: "engine",
				Name:      "liquidations_total",
				Help:      "Liquidation evaluations segmented by verdict.",
			}, []string{"verdict"}),
			poolBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lendpool",
				Subsystem: "pool",
				Name:      "balance",
				Help:      "Available pool liquidity from the last persisted snapshot.",
			}),
			poolLentOut: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lendpool",
				Subsystem: "pool",
				Name:      "lent_out",
				Help:      "Outstanding principal from the last persisted snapshot.",
			}),
			poolShares: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lendpool",
				Subsystem: "pool",
				Name:      "total_shares",
				Help:      "LP share supply from the last persisted snapshot.",
			}),
		}
		prometheus.MustRegister(
			engineRegistry.quotes,
			engineRegistry.errors,
			engineRegistry.latency,
			engineRegistry.liquidations,
			engineRegistry.poolBalance,
			engineRegistry.poolLentOut,
			engineRegistry.poolShares,
		)
	})
	return engineRegistry
}

// ObserveQuote records one quote evaluation.
func (m *EngineMetrics) ObserveQuote(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(operation).Inc()
	}
	m.quotes.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveLiquidation records the verdict of one liquidation evaluation.
func (m *EngineMetrics) ObserveLiquidation(liquidatable bool) {
	if m == nil {
		return
	}
	verdict := "healthy"
	if liquidatable {
		verdict = "liquidatable"
	}
	m.liquidations.WithLabelValues(verdict).Inc()
}

// SetPoolSnapshot publishes the persisted pool totals. Precision above 2^53
// is lost in the float conversion, which is acceptable for dashboards.
func (m *EngineMetrics) SetPoolSnapshot(balance, lentOut, totalShares *big.Int) {
	if m == nil {
		return
	}
	m.poolBalance.Set(bigApprox(balance))
	m.poolLentOut.Set(bigApprox(lentOut))
	m.poolShares.Set(bigApprox(totalShares))
}

func bigApprox(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
