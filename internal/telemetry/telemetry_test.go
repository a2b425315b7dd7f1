package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func newTestTelemetry() *Telemetry {
	return New(prometheus.NewRegistry())
}

func TestRecordRequest_CountsByMethodAndStatus(t *testing.T) {
	tel := newTestTelemetry()

	tel.RecordRequest("basic_request", 200)
	tel.RecordRequest("basic_request", 200)
	tel.RecordRequest("postman_request", 403)

	assert.Equal(t, 2, tel.RequestCount("basic_request", 200))
	assert.Equal(t, 1, tel.RequestCount("postman_request", 403))
	assert.Equal(t, 0, tel.RequestCount("playwright_request", 200))
}

func TestRecordBuild_TracksPerProvider(t *testing.T) {
	tel := newTestTelemetry()

	tel.RecordBuild("example.com", true)
	tel.RecordBuild("example.com", false)
	tel.RecordBuild("other.com", true)

	report := tel.Snapshot()
	assert.Equal(t, BuildCount{Successful: 1, Failed: 1}, report.Builds["example.com"])
	assert.Equal(t, BuildCount{Successful: 1, Failed: 0}, report.Builds["other.com"])
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	tel := newTestTelemetry()
	tel.RecordRequest("basic_request", 200)

	snap := tel.Snapshot()
	tel.RecordRequest("basic_request", 200)

	assert.Equal(t, 1, snap.Requests["basic_request:200"])
	assert.Equal(t, 2, tel.RequestCount("basic_request", 200))
}

func TestScenario4_CustomFetcherShortCircuitCounters(t *testing.T) {
	tel := newTestTelemetry()

	tel.RecordRequest("custom_www.msn.com_request", 403)

	assert.Equal(t, 0, tel.RequestCount("basic_request", 200))
	assert.Equal(t, 0, tel.RequestCount("postman_request", 200))
	assert.Equal(t, 0, tel.RequestCount("playwright_request", 200))
	assert.Equal(t, 1, tel.RequestCount("custom_www.msn.com_request", 403))
}

func TestScenario5_PlaywrightFallbackCounters(t *testing.T) {
	tel := newTestTelemetry()

	tel.RecordRequest("basic_request", 403)
	tel.RecordRequest("postman_request", 403)
	tel.RecordRequest("playwright_request", 200)

	assert.Equal(t, 1, tel.RequestCount("basic_request", 403))
	assert.Equal(t, 1, tel.RequestCount("postman_request", 403))
	assert.Equal(t, 1, tel.RequestCount("playwright_request", 200))
}
