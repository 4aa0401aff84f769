package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricNameSpace = "passportd"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "http_requests_total",
			Help:      "api requests by route and status code",
		},
		[]string{"route", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricNameSpace,
			Name:      "http_request_duration_seconds",
			Help:      "api request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	mintsPrepared = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "mints_prepared_total",
			Help:      "mint transactions handed to wallets",
		},
		[]string{"kind"},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "submissions_total",
			Help:      "signed transactions submitted, by outcome",
		},
		[]string{"kind", "outcome"},
	)

	feesCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "service_fees_lamports_total",
			Help:      "service fees confirmed into the treasury",
		},
	)

	withdrawals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "treasury_withdrawals_total",
			Help:      "treasury withdrawals, by outcome",
		},
		[]string{"outcome"},
	)

	uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "uploads_total",
			Help:      "documents and images uploaded to storage, by outcome",
		},
		[]string{"kind", "outcome"},
	)

	treasuryBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricNameSpace,
			Name:      "treasury_balance_lamports",
			Help:      "last observed treasury balance",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequests,
		httpDuration,
		mintsPrepared,
		submissions,
		feesCollected,
		withdrawals,
		uploads,
		treasuryBalance,
	)
}

// Handler serves the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveRequest(route string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func MintPrepared(kind string) {
	mintsPrepared.WithLabelValues(kind).Inc()
}

func Submission(kind, outcome string) {
	submissions.WithLabelValues(kind, outcome).Inc()
}

func FeeCollected(lamports uint64) {
	feesCollected.Add(float64(lamports))
}

func Withdrawal(outcome string) {
	withdrawals.WithLabelValues(outcome).Inc()
}

func Upload(kind, outcome string) {
	uploads.WithLabelValues(kind, outcome).Inc()
}

func TreasuryBalance(lamports uint64) {
	treasuryBalance.Set(float64(lamports))
}
