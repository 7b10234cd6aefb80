package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semreg_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "semreg_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "semreg_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semreg_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semreg_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)

	AmountMismatch = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semreg_checkout_amount_mismatch_total",
			Help: "Checkout attempts rejected because the client-asserted total did not match",
		},
	)

	CheckinScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semreg_checkin_scans_total",
			Help: "Check-in scans by result",
		},
		[]string{"result"},
	)
)
