// Package metrics provides Prometheus instrumentation for the
// execution and risk core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FillsTotal counts executed fills, partitioned by side.
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_fills_total",
		Help: "Total number of fills executed",
	}, []string{"side"})

	// OrdersRejected counts orders terminated as rejected.
	OrdersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrader_orders_rejected_total",
		Help: "Orders rejected by the matching engine",
	})

	// BreachesTotal counts risk gate breaches by code.
	BreachesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_risk_breaches_total",
		Help: "Risk gate breaches",
	}, []string{"code"})

	// KillSwitch is 1 while the gate's kill switch is engaged.
	KillSwitch = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrader_kill_switch",
		Help: "Risk gate kill switch state",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
