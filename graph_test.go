package cgraph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/cgraph"
	"pipelined.dev/cgraph/mock"
	"pipelined.dev/cgraph/mpmc"
)

const packetSize = 512

// line wires pump -> processor -> sink with fresh channels and returns
// the nodes.
func line(t *testing.T, pump *mock.Pump, proc *mock.Processor, sink *mock.Sink, options ...cgraph.NodeOption) []cgraph.Node {
	t.Helper()
	pumped := mpmc.New[[]float64](4)
	pumpOut, err := pumped.Attach(mpmc.Shared)
	require.NoError(t, err)
	processed := mpmc.New[[]float64](4)
	procOut, err := processed.Attach(mpmc.Shared)
	require.NoError(t, err)
	return []cgraph.Node{
		pump.Source("pump", pumped.Sender()),
		proc.Proc("proc", pumpOut, processed.Sender(), options...),
		sink.Sink("sink", procOut),
	}
}

func TestLinearGraph(t *testing.T) {
	defer goleak.VerifyNone(t)
	// source -> transform -> sink: 100 packets flow through and the
	// graph terminates cleanly
	pump := &mock.Pump{Limit: 100, PacketSize: packetSize}
	proc := &mock.Processor{}
	sink := &mock.Sink{Discard: true}

	g := cgraph.New(cgraph.Name("linear"))
	require.NoError(t, g.Add(line(t, pump, proc, sink)...))
	require.NoError(t, g.Run())

	messages, samples := pump.Counter.Count()
	assert.Equal(t, 100, messages)
	assert.Equal(t, 100*packetSize, samples)
	messages, samples = sink.Counter.Count()
	assert.Equal(t, 100, messages)
	assert.Equal(t, 100*packetSize, samples)
}

func TestBroadcastFanOut(t *testing.T) {
	defer goleak.VerifyNone(t)
	// two sinks on independent broadcast groups both observe every
	// packet in order
	pump := &mock.Pump{Limit: 20, PacketSize: 8}
	sinkA := &mock.Sink{}
	sinkB := &mock.Sink{}

	pumped := mpmc.New[[]float64](4)
	groupA, err := pumped.Attach(mpmc.Broadcast)
	require.NoError(t, err)
	groupB, err := pumped.Attach(mpmc.Broadcast)
	require.NoError(t, err)

	g := cgraph.New()
	require.NoError(t, g.Add(
		pump.Source("pump", pumped.Sender()),
		sinkA.Sink("sink-a", groupA),
		sinkB.Sink("sink-b", groupB),
	))
	require.NoError(t, g.Run())

	require.Len(t, sinkA.Values(), 20)
	require.Len(t, sinkB.Values(), 20)
	for i, packet := range sinkA.Values() {
		assert.Equal(t, float64(i), packet[0])
	}
	for i, packet := range sinkB.Values() {
		assert.Equal(t, float64(i), packet[0])
	}
}

func TestSharedWorkers(t *testing.T) {
	defer goleak.VerifyNone(t)
	// four workers compete within one shared group, every packet is
	// processed exactly once
	pump := &mock.Pump{Limit: 50, PacketSize: 8}
	proc := &mock.Processor{}
	sink := &mock.Sink{Discard: true}

	g := cgraph.New()
	require.NoError(t, g.Add(line(t, pump, proc, sink, cgraph.Workers(4))...))
	require.NoError(t, g.Run())

	messages, _ := proc.Counter.Count()
	assert.Equal(t, 50, messages)
	messages, _ = sink.Counter.Count()
	assert.Equal(t, 50, messages)
}

func TestWiringFail(t *testing.T) {
	defer goleak.VerifyNone(t)
	testWiring := func(nodes ...cgraph.Node) func(*testing.T) {
		return func(t *testing.T) {
			t.Helper()
			g := cgraph.New()
			require.NoError(t, g.Add(nodes...))
			err := g.Start()
			require.Error(t, err)
			var wiring *cgraph.WiringError
			assert.True(t, errors.As(err, &wiring))
		}
	}
	processed := mpmc.New[[]float64](4)
	procOut, err := processed.Attach(mpmc.Shared)
	require.NoError(t, err)

	t.Run("unbound output", testWiring(
		(&mock.Pump{Limit: 1, PacketSize: 1}).Source("pump", nil),
	))
	t.Run("unbound input", testWiring(
		(&mock.Sink{}).Sink("sink", nil),
	))
	t.Run("missing function", testWiring(
		cgraph.NewSink[[]float64]("sink", procOut, nil),
	))
	t.Run("invalid workers", testWiring(
		(&mock.Sink{}).Sink("sink", procOut, cgraph.Workers(0)),
	))

	t.Run("empty graph", func(t *testing.T) {
		err := cgraph.New().Start()
		assert.True(t, errors.Is(err, cgraph.ErrEmptyGraph))
	})

	t.Run("broadcast input with workers", func(t *testing.T) {
		pumped := mpmc.New[[]float64](4)
		group, err := pumped.Attach(mpmc.Broadcast)
		require.NoError(t, err)
		g := cgraph.New()
		require.NoError(t, g.Add(
			(&mock.Sink{}).Sink("sink", group, cgraph.Workers(2)),
		))
		err = g.Start()
		assert.True(t, errors.Is(err, mpmc.ErrBroadcastMembers))
	})
}

func TestNodeFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	// a compute failure is node-fatal: the run reports it and the
	// graph still drains and terminates
	errCompute := errors.New("compute failed")
	pump := &mock.Pump{Limit: 10, PacketSize: 8}
	proc := &mock.Processor{ErrorOnCall: errCompute, FailOnCall: 3}
	sink := &mock.Sink{Discard: true}

	g := cgraph.New()
	require.NoError(t, g.Add(line(t, pump, proc, sink)...))
	err := g.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errCompute))
	var nodeErr *cgraph.NodeError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, "proc", nodeErr.Node)

	// the source was not torn down, it finished its stream
	messages, _ := pump.Counter.Count()
	assert.Equal(t, 10, messages)
}

func TestAllFailuresReported(t *testing.T) {
	defer goleak.VerifyNone(t)
	// independent nodes may fail in one run, the whole set is returned
	errA := errors.New("failure a")
	errB := errors.New("failure b")

	g := cgraph.New()
	require.NoError(t, g.Add(line(t,
		&mock.Pump{Limit: 5, PacketSize: 8},
		&mock.Processor{ErrorOnCall: errA, FailOnCall: 1},
		&mock.Sink{Discard: true},
	)...))
	require.NoError(t, g.Add(line(t,
		&mock.Pump{Limit: 5, PacketSize: 8},
		&mock.Processor{ErrorOnCall: errB, FailOnCall: 1},
		&mock.Sink{Discard: true},
	)...))

	err := g.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errA))
	assert.True(t, errors.Is(err, errB))
	var runErrs cgraph.RunErrors
	require.True(t, errors.As(err, &runErrs))
	assert.Len(t, runErrs, 2)
}

func TestSkip(t *testing.T) {
	defer goleak.VerifyNone(t)
	// a skipped message is dropped and recorded, not a failure
	pump := &mock.Pump{Limit: 10, PacketSize: 8}
	proc := &mock.Processor{SkipOnCall: 3}
	sink := &mock.Sink{Discard: true}

	g := cgraph.New()
	require.NoError(t, g.Add(line(t, pump, proc, sink)...))
	require.NoError(t, g.Run())

	messages, _ := sink.Counter.Count()
	assert.Equal(t, 9, messages)
}

func TestFlushFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	errFlush := errors.New("flush failed")
	pump := &mock.Pump{Limit: 5, PacketSize: 8}
	sink := &mock.Sink{Discard: true}

	pumped := mpmc.New[[]float64](4)
	pumpOut, err := pumped.Attach(mpmc.Shared)
	require.NoError(t, err)

	g := cgraph.New()
	require.NoError(t, g.Add(
		pump.Source("pump", pumped.Sender()),
		sink.Sink("sink", pumpOut, cgraph.FlushHook(func() error { return errFlush })),
	))
	err = g.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errFlush))
}

func TestGraphReuse(t *testing.T) {
	defer goleak.VerifyNone(t)
	pump := &mock.Pump{Limit: 1, PacketSize: 1}
	sink := &mock.Sink{Discard: true}

	pumped := mpmc.New[[]float64](4)
	pumpOut, err := pumped.Attach(mpmc.Shared)
	require.NoError(t, err)
	source := pump.Source("pump", pumped.Sender())

	g := cgraph.New()
	require.NoError(t, g.Add(source, sink.Sink("sink", pumpOut)))
	assert.Error(t, g.Add(source), "node added twice")

	require.NoError(t, g.Start())
	assert.Equal(t, cgraph.ErrGraphStarted, g.Start())
	late := (&mock.Sink{}).Sink("late", pumpOut)
	assert.Equal(t, cgraph.ErrGraphStarted, g.Add(late))
	require.NoError(t, g.Wait())
}
