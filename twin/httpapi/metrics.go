package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// plansTotal counts completed /plan requests by strategy and outcome.
var plansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dtwin",
	Subsystem: "plan",
	Name:      "requests_total",
	Help:      "Total /plan requests by strategy and outcome.",
}, []string{"strategy", "outcome"})

// planLatency tracks predicted plan latency by strategy.
var planLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "dtwin",
	Subsystem: "plan",
	Name:      "predicted_latency_ms",
	Help:      "Predicted plan latency in milliseconds, by strategy.",
	Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
}, []string{"strategy"})

// infeasibleTotal counts plan requests that came back NoFeasiblePlacement.
var infeasibleTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dtwin",
	Subsystem: "plan",
	Name:      "infeasible_total",
	Help:      "Total /plan requests that yielded no feasible placement.",
})
