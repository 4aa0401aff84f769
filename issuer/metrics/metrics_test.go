package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(mintsPrepared.WithLabelValues("nft"))
	MintPrepared("nft")
	assert.Equal(t, before+1, testutil.ToFloat64(mintsPrepared.WithLabelValues("nft")))

	feesBefore := testutil.ToFloat64(feesCollected)
	FeeCollected(1_601_000)
	assert.Equal(t, feesBefore+1_601_000, testutil.ToFloat64(feesCollected))

	TreasuryBalance(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(treasuryBalance))

	Submission("nft", "confirmed")
	assert.GreaterOrEqual(t, testutil.ToFloat64(submissions.WithLabelValues("nft", "confirmed")), 1.0)

	Upload("image", "stored")
	assert.GreaterOrEqual(t, testutil.ToFloat64(uploads.WithLabelValues("image", "stored")), 1.0)

	Withdrawal("insufficient_funds")
	assert.GreaterOrEqual(t, testutil.ToFloat64(withdrawals.WithLabelValues("insufficient_funds")), 1.0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveRequest("/api/health", http.StatusOK, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `passportd_http_requests_total{code="200",route="/api/health"}`)
	assert.Contains(t, rec.Body.String(), "passportd_http_request_duration_seconds")
}
