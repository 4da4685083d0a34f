// Package metric measures node throughput. Values are published with
// expvar and keyed by node name.
package metric

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const nodesLabel = "cgraph.nodes"

const (
	// MessageCounter measures number of messages.
	MessageCounter = "Messages"
	// SkipCounter measures number of skipped messages.
	SkipCounter = "Skips"
	// WorkerCounter counts workers that processed messages.
	WorkerCounter = "Workers"
	// LatencyCounter measures latency between processing calls.
	LatencyCounter = "Latency"
)

var (
	nodes = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		MessageCounter,
		SkipCounter,
		WorkerCounter,
		LatencyCounter,
	}
)

// Get returns metric values for the provided node.
func Get(node string) map[string]string {
	return getCounters(node)
}

// GetAll returns counters for all measured nodes.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	nodes.Lock()
	defer nodes.Unlock()
	for node := range nodes.m {
		m[node] = getCounters(node)
	}
	return m
}

func getCounters(node string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(node, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// ResetFunc returns a new MeasureFunc. The closure postpones metrics
// capture until the worker is actually running.
type ResetFunc func() MeasureFunc

// MeasureFunc captures metrics when a message is processed.
type MeasureFunc func(messages int64)

// Meter creates a new meter closure to capture node counters.
func Meter(node string) ResetFunc {
	metric := nodes.get(node)
	return func() MeasureFunc {
		metric.workers.Add(1)
		calledAt := time.Now()
		return func(messages int64) {
			metric.latency.set(time.Since(calledAt))
			metric.messages.Add(messages)
			calledAt = time.Now()
		}
	}
}

// Skip records a skipped message for the node.
func Skip(node string) {
	nodes.get(node).skips.Add(1)
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(node string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[node]; ok {
		return metric
	}
	metric := newMetric(node)
	m.m[node] = metric
	return metric
}

type metric struct {
	messages *expvar.Int
	skips    *expvar.Int
	workers  *expvar.Int
	latency  *durationVar
}

func newMetric(node string) metric {
	return metric{
		messages: expvar.NewInt(key(node, MessageCounter)),
		skips:    expvar.NewInt(key(node, SkipCounter)),
		workers:  expvar.NewInt(key(node, WorkerCounter)),
		latency:  newDurationVar(key(node, LatencyCounter)),
	}
}

func key(node, counter string) string {
	return fmt.Sprintf("%s.%s.%s", nodesLabel, node, counter)
}

// durationVar is an expvar.Var holding a duration.
type durationVar struct {
	d int64
}

func newDurationVar(name string) *durationVar {
	v := &durationVar{}
	expvar.Publish(name, v)
	return v
}

func (v *durationVar) set(d time.Duration) {
	atomic.StoreInt64(&v.d, int64(d))
}

func (v *durationVar) String() string {
	return fmt.Sprintf("%q", time.Duration(atomic.LoadInt64(&v.d)).String())
}
