package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncJobFinished_NormalizesLabels(t *testing.T) {
	IncJobFinished(" FlightSearch ", "SUCCEEDED")
	assert.Equal(t, float64(1), testutil.ToFloat64(jobsFinishedTotal.WithLabelValues("flightsearch", "succeeded")))
}

func TestAddQuotesExpired(t *testing.T) {
	before := testutil.ToFloat64(quotesExpiredTotal)
	AddQuotesExpired(3)
	assert.Equal(t, before+3, testutil.ToFloat64(quotesExpiredTotal))
}

func TestMustRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}
