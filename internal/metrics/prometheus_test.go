package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordProviderCall(t *testing.T) {
	before := testutil.ToFloat64(ProviderCalls.WithLabelValues("test-provider", "error"))
	RecordProviderCall("test-provider", 10*time.Millisecond, errors.New("boom"))
	after := testutil.ToFloat64(ProviderCalls.WithLabelValues("test-provider", "error"))
	assert.Equal(t, before+1, after)
}

func TestRecordIngestion_GaugeOnlyOnSuccess(t *testing.T) {
	RecordIngestion("TESTSYM", "success", time.Millisecond, 42)
	assert.Equal(t, 42.0, testutil.ToFloat64(LegsStored.WithLabelValues("TESTSYM")))

	RecordIngestion("TESTSYM", "fetch_error", time.Millisecond, 0)
	assert.Equal(t, 42.0, testutil.ToFloat64(LegsStored.WithLabelValues("TESTSYM")))
}

func TestInitIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}
