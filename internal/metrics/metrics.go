// Package metrics holds the Prometheus collectors for the ledger service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// LedgerPostings counts PostPayment outcomes: posted, duplicate, rejected, failed.
	LedgerPostings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_postings_total",
		Help: "Payment postings by result.",
	}, []string{"result"})

	LedgerFeesPosted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_fees_posted_total",
		Help: "Sum of platform fees posted, in currency units.",
	})

	CashoutTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cashout_transitions_total",
		Help: "Cashout requests entering each state.",
	}, []string{"status"})

	CashoutAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cashout_processed_amount_total",
		Help: "Gross amount of processed cashouts, in currency units.",
	})

	OwnerPayments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "owner_payments_total",
		Help: "Owner payout attempts by result.",
	}, []string{"result"})

	ReportCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_cache_total",
		Help: "Report cache lookups by result: hit, miss, error.",
	}, []string{"result"})
)
