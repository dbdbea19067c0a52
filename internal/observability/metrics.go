package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreatedTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "medride", Name: "rides_created_total", Help: "Total rides created"})
	BidsPlacedTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "medride", Name: "bids_placed_total", Help: "Total bids placed"})
	BidsAcceptedTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "medride", Name: "bids_accepted_total", Help: "Total bids accepted"})
	CounterOffersTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "medride", Name: "counter_offers_total", Help: "Total counter-offer rounds"})

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "medride", Name: "ride_transitions_total", Help: "Ride status transitions applied"},
		[]string{"to"},
	)
	CancellationsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "medride", Name: "ride_cancellations_total", Help: "Total rides cancelled"})
	PaymentFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "medride", Name: "payment_failures_total", Help: "Payment processor failure callbacks"})
	QuoteWarningsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "medride", Name: "quote_warnings_total", Help: "Quotes served with degraded route or promo data"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "medride", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medride",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
