package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(Interviews.WithLabelValues("PASSED"))
	Interviews.WithLabelValues("PASSED").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Interviews.WithLabelValues("PASSED")))

	auto := testutil.ToFloat64(Assignments.WithLabelValues(ModeAuto))
	Assignments.WithLabelValues(ModeAuto).Add(2)
	assert.Equal(t, auto+2, testutil.ToFloat64(Assignments.WithLabelValues(ModeAuto)))
}

func TestActiveGauge(t *testing.T) {
	start := testutil.ToFloat64(ExecutionsActive)
	ExecutionsActive.Inc()
	assert.Equal(t, start+1, testutil.ToFloat64(ExecutionsActive))
	ExecutionsActive.Dec()
	assert.Equal(t, start, testutil.ToFloat64(ExecutionsActive))
}
