package metric_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/cgraph/metric"
)

// expvar registration is process-global, every test uses its own node
// name.

func TestMeter(t *testing.T) {
	meter := metric.Meter("meter-node")

	measure := meter()
	measure(3)
	measure(2)

	m := metric.Get("meter-node")
	assert.Equal(t, "5", m[metric.MessageCounter])
	assert.Equal(t, "1", m[metric.WorkerCounter])
	assert.Equal(t, "0", m[metric.SkipCounter])
	assert.NotEmpty(t, m[metric.LatencyCounter])

	// a second worker resets its own closure only
	measure = meter()
	measure(1)

	m = metric.Get("meter-node")
	assert.Equal(t, "6", m[metric.MessageCounter])
	assert.Equal(t, "2", m[metric.WorkerCounter])
}

func TestSkip(t *testing.T) {
	metric.Meter("skip-node")
	metric.Skip("skip-node")
	metric.Skip("skip-node")

	m := metric.Get("skip-node")
	assert.Equal(t, "2", m[metric.SkipCounter])
	assert.Equal(t, "0", m[metric.MessageCounter])
}

func TestGetAll(t *testing.T) {
	measure := metric.Meter("all-node")()
	measure(1)

	all := metric.GetAll()
	require.Contains(t, all, "all-node")
	assert.Equal(t, "1", all["all-node"][metric.MessageCounter])
}

func TestGetUnknown(t *testing.T) {
	assert.Empty(t, metric.Get("never-measured"))
}
