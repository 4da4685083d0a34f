package cgraph

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"pipelined.dev/cgraph/log"
	"pipelined.dev/cgraph/metric"
	"pipelined.dev/cgraph/mpmc"
)

type (
	// Node is a pipeline stage with typed ports, executed on one or
	// more dedicated workers. Element types of the ports are fixed by
	// the node's type parameters, so an edge can only connect ports of
	// identical element type.
	//
	// Workers share no mutable state except what channels provide: the
	// node function must be safe for concurrent invocation when the
	// node runs more than one worker.
	Node interface {
		// Name returns the node name for logging and metrics.
		Name() string
		// Workers returns the number of workers the node runs on.
		Workers() int
		// Validate reports wiring problems. A graph with an invalid
		// node is not started.
		Validate() error
		// Run executes one worker until the inputs are exhausted or
		// the node fails. It is called once per worker, with worker
		// identifiers in [0, Workers()).
		Run(worker int) error
		// Flush releases node resources. It is called exactly once,
		// after the last worker has exited.
		Flush() error
	}

	// SourceFunc produces the next message. It returns io.EOF when the
	// production is finished; returning ErrSkip drops the message.
	SourceFunc[O any] func() (O, error)

	// ProcFunc transforms one message. Returning ErrSkip drops the
	// message, any other error fails the node.
	ProcFunc[I, O any] func(I) (O, error)

	// SinkFunc consumes one message. Returning ErrSkip drops the
	// message, any other error fails the node.
	SinkFunc[I any] func(I) error
)

// NodeOption provides a way to set node parameters.
type NodeOption func(*nodeOptions)

type nodeOptions struct {
	workers int
	flush   func() error
	logger  log.Logger
}

// Workers sets the number of workers the node runs on. When n is
// greater than one, all workers attach as members of the same shared
// group on every input, competing for messages. Order across workers
// is not preserved.
func Workers(n int) NodeOption {
	return func(o *nodeOptions) {
		o.workers = n
	}
}

// FlushHook sets the function called once after the last worker of the
// node has exited, regardless of failures.
func FlushHook(fn func() error) NodeOption {
	return func(o *nodeOptions) {
		o.flush = fn
	}
}

// NodeLogger sets the logger used to record skipped messages.
func NodeLogger(l log.Logger) NodeOption {
	return func(o *nodeOptions) {
		o.logger = l
	}
}

func newNodeOptions(options []NodeOption) nodeOptions {
	o := nodeOptions{
		workers: 1,
		logger:  log.Default(),
	}
	for _, option := range options {
		option(&o)
	}
	return o
}

// state is the bookkeeping shared by the generic nodes.
type state struct {
	name    string
	workers int
	wiring  []error
	flush   func() error
	logger  log.Logger
	meter   metric.ResetFunc
	failed  atomic.Bool
}

func newState(name string, o nodeOptions) *state {
	s := &state{
		name:    name,
		workers: o.workers,
		flush:   o.flush,
		logger:  o.logger,
		meter:   metric.Meter(name),
	}
	if o.workers < 1 {
		s.wiring = append(s.wiring, fmt.Errorf("invalid workers count: %d", o.workers))
		s.workers = 1
	}
	return s
}

// Name returns the node name.
func (s *state) Name() string {
	return s.name
}

// Workers returns the worker count.
func (s *state) Workers() int {
	return s.workers
}

// Validate reports wiring problems recorded at construction.
func (s *state) Validate() error {
	return errors.Join(s.wiring...)
}

// Flush calls the flush hook if one was provided.
func (s *state) Flush() error {
	if s.flush == nil {
		return nil
	}
	return s.flush()
}

func (s *state) skip() {
	metric.Skip(s.name)
	s.logger.Debug("node ", s.name, ": message skipped")
}

// fail marks the node failed so sibling workers stop at their next
// iteration, and wraps the failure.
func (s *state) fail(err error) error {
	s.failed.Store(true)
	return &NodeError{Node: s.name, Err: err}
}

// senders mints per-worker handles of the output port. Every worker
// closes its own handle on exit, so the channel corks exactly when the
// node's last worker is done.
func senders[O any](s *state, out *mpmc.Sender[O]) []*mpmc.Sender[O] {
	if out == nil {
		s.wiring = append(s.wiring, errors.New("unbound output port"))
		return nil
	}
	txs := make([]*mpmc.Sender[O], s.workers)
	txs[0] = out
	for i := 1; i < s.workers; i++ {
		txs[i] = out.Clone()
	}
	return txs
}

// receivers adds one group member per worker on the input port.
func receivers[I any](s *state, in *mpmc.Group[I]) []*mpmc.Receiver[I] {
	if in == nil {
		s.wiring = append(s.wiring, errors.New("unbound input port"))
		return nil
	}
	rxs := make([]*mpmc.Receiver[I], s.workers)
	for i := range rxs {
		rx, err := in.Receiver()
		if err != nil {
			s.wiring = append(s.wiring, fmt.Errorf("input port: %w", err))
			return nil
		}
		rxs[i] = rx
	}
	return rxs
}

// SourceNode produces messages until its function reports io.EOF.
type SourceNode[O any] struct {
	*state
	fn  SourceFunc[O]
	out []*mpmc.Sender[O]
}

// NewSource returns a node that repeatedly calls fn and pushes produced
// messages to out.
func NewSource[O any](name string, out *mpmc.Sender[O], fn SourceFunc[O], options ...NodeOption) *SourceNode[O] {
	s := newState(name, newNodeOptions(options))
	n := &SourceNode[O]{state: s, fn: fn}
	if fn == nil {
		s.wiring = append(s.wiring, errors.New("missing source function"))
	}
	n.out = senders(s, out)
	return n
}

// Run executes one source worker.
func (n *SourceNode[O]) Run(worker int) error {
	out := n.out[worker]
	defer out.Close()
	measure := n.meter()
	for {
		if n.failed.Load() {
			return nil
		}
		v, err := n.fn()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, ErrSkip) {
				n.skip()
				continue
			}
			return n.fail(err)
		}
		if err := out.Send(v); err != nil {
			return n.fail(err)
		}
		measure(1)
	}
}

// ProcNode transforms messages one by one.
type ProcNode[I, O any] struct {
	*state
	fn  ProcFunc[I, O]
	rx  []*mpmc.Receiver[I]
	out []*mpmc.Sender[O]
}

// NewProc returns a node that pulls messages from in, transforms them
// with fn and pushes results to out. With Workers(n), n > 1, the input
// group must be Shared: workers compete for messages and the relative
// order of their results is unspecified.
func NewProc[I, O any](name string, in *mpmc.Group[I], out *mpmc.Sender[O], fn ProcFunc[I, O], options ...NodeOption) *ProcNode[I, O] {
	s := newState(name, newNodeOptions(options))
	n := &ProcNode[I, O]{state: s, fn: fn}
	if fn == nil {
		s.wiring = append(s.wiring, errors.New("missing process function"))
	}
	n.rx = receivers(s, in)
	n.out = senders(s, out)
	return n
}

// Run executes one processor worker.
func (n *ProcNode[I, O]) Run(worker int) error {
	rx, out := n.rx[worker], n.out[worker]
	defer out.Close()
	defer rx.Close()
	measure := n.meter()
	for {
		if n.failed.Load() {
			return nil
		}
		v, err := rx.Receive()
		if err != nil {
			// end of stream
			return nil
		}
		o, err := n.fn(v)
		if err != nil {
			if errors.Is(err, ErrSkip) {
				n.skip()
				continue
			}
			return n.fail(err)
		}
		if err := out.Send(o); err != nil {
			return n.fail(err)
		}
		measure(1)
	}
}

// SinkNode consumes messages until the input reports end of stream.
type SinkNode[I any] struct {
	*state
	fn SinkFunc[I]
	rx []*mpmc.Receiver[I]
}

// NewSink returns a node that pulls messages from in and consumes them
// with fn.
func NewSink[I any](name string, in *mpmc.Group[I], fn SinkFunc[I], options ...NodeOption) *SinkNode[I] {
	s := newState(name, newNodeOptions(options))
	n := &SinkNode[I]{state: s, fn: fn}
	if fn == nil {
		s.wiring = append(s.wiring, errors.New("missing sink function"))
	}
	n.rx = receivers(s, in)
	return n
}

// Run executes one sink worker.
func (n *SinkNode[I]) Run(worker int) error {
	rx := n.rx[worker]
	defer rx.Close()
	measure := n.meter()
	for {
		if n.failed.Load() {
			return nil
		}
		v, err := rx.Receive()
		if err != nil {
			return nil
		}
		if err := n.fn(v); err != nil {
			if errors.Is(err, ErrSkip) {
				n.skip()
				continue
			}
			return n.fail(err)
		}
		measure(1)
	}
}
