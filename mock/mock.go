// Package mock provides nodes to test graph execution.
package mock

import (
	"io"
	"sync"

	"pipelined.dev/cgraph"
	"pipelined.dev/cgraph/mpmc"
)

// Counter counts messages and samples seen by a mock node. It is safe
// for concurrent use, mock nodes may run on multiple workers.
type Counter struct {
	mu       sync.Mutex
	messages int
	samples  int
}

func (c *Counter) advance(packet []float64) {
	c.mu.Lock()
	c.messages++
	c.samples += len(packet)
	c.mu.Unlock()
}

// Count returns the number of messages and samples counted.
func (c *Counter) Count() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages, c.samples
}

// Pump produces Limit packets of PacketSize samples. Every sample of
// the i-th packet holds the value i, so ordering can be asserted
// downstream.
type Pump struct {
	Limit      int
	PacketSize int
	Counter    Counter

	mu       sync.Mutex
	produced int
}

// Source returns a source node backed by the pump.
func (m *Pump) Source(name string, out *mpmc.Sender[[]float64], options ...cgraph.NodeOption) *cgraph.SourceNode[[]float64] {
	fn := func() ([]float64, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.produced >= m.Limit {
			return nil, io.EOF
		}
		packet := make([]float64, m.PacketSize)
		for i := range packet {
			packet[i] = float64(m.produced)
		}
		m.produced++
		m.Counter.advance(packet)
		return packet, nil
	}
	return cgraph.NewSource(name, out, fn, options...)
}

// Processor passes packets through and counts them. ErrorOnCall fails
// the node and SkipOnCall skips the packet when the respective 1-based
// call number is reached.
type Processor struct {
	ErrorOnCall error
	FailOnCall  int
	SkipOnCall  int
	Counter     Counter

	mu    sync.Mutex
	calls int
}

// Proc returns a processor node backed by the mock.
func (m *Processor) Proc(name string, in *mpmc.Group[[]float64], out *mpmc.Sender[[]float64], options ...cgraph.NodeOption) *cgraph.ProcNode[[]float64, []float64] {
	fn := func(packet []float64) ([]float64, error) {
		m.mu.Lock()
		m.calls++
		calls := m.calls
		m.mu.Unlock()
		if m.ErrorOnCall != nil && calls >= m.FailOnCall {
			return nil, m.ErrorOnCall
		}
		if m.SkipOnCall != 0 && calls == m.SkipOnCall {
			return nil, cgraph.ErrSkip
		}
		m.Counter.advance(packet)
		return packet, nil
	}
	return cgraph.NewProc(name, in, out, fn, options...)
}

// Sink consumes packets, counting them and keeping the values unless
// Discard is set.
type Sink struct {
	Discard bool
	Counter Counter

	mu     sync.Mutex
	values [][]float64
}

// Sink returns a sink node backed by the mock.
func (m *Sink) Sink(name string, in *mpmc.Group[[]float64], options ...cgraph.NodeOption) *cgraph.SinkNode[[]float64] {
	fn := func(packet []float64) error {
		m.Counter.advance(packet)
		if !m.Discard {
			m.mu.Lock()
			m.values = append(m.values, packet)
			m.mu.Unlock()
		}
		return nil
	}
	return cgraph.NewSink(name, in, fn, options...)
}

// Values returns the packets collected by the sink.
func (m *Sink) Values() [][]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values
}
