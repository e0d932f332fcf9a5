// Package metrics registers the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fuelbook"

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by method, route pattern and status code.",
}, []string{"method", "route", "status"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by method and route pattern.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

// LedgerCalls counts calls to the accounting service. outcome is ok or error.
var LedgerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "calls_total",
	Help:      "Ledger calls by operation, document type and outcome.",
}, []string{"op", "doc_type", "outcome"})

var DayClosingFinalize = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "day_closing",
	Name:      "finalize_total",
	Help:      "Day closing submissions by outcome (approved, pending, failed).",
}, []string{"outcome"})

var CompensationFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "compensation_failures_total",
	Help:      "Ledger documents that could not be cancelled during a reversal.",
})

func Handler() http.Handler {
	return promhttp.Handler()
}

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
