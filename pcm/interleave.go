package pcm

import (
	"errors"
	"fmt"

	"pipelined.dev/cgraph"
	"pipelined.dev/cgraph/metric"
	"pipelined.dev/cgraph/mpmc"
)

// Interleaver merges per-channel sample streams into one interleaved
// stream, one frame at a time. If any channel ends mid-frame the
// partial frame is dropped so the output always ends on a full frame.
type Interleaver struct {
	name   string
	rx     []*mpmc.Receiver[[]float64]
	out    *mpmc.Sender[[]float64]
	packet int
	meter  metric.ResetFunc
	wiring []error
}

// NewInterleaver returns a fan-in node interleaving len(inputs)
// channels. Output packets hold at least packet samples except for the
// last one.
func NewInterleaver(name string, inputs []*mpmc.Group[[]float64], out *mpmc.Sender[[]float64], packet int) *Interleaver {
	n := &Interleaver{
		name:   name,
		out:    out,
		packet: packet,
		meter:  metric.Meter(name),
	}
	if len(inputs) == 0 {
		n.wiring = append(n.wiring, errors.New("no input ports"))
	}
	if out == nil {
		n.wiring = append(n.wiring, errors.New("unbound output port"))
	}
	if packet < 1 {
		n.wiring = append(n.wiring, fmt.Errorf("invalid packet size: %d", packet))
	}
	for i, in := range inputs {
		if in == nil {
			n.wiring = append(n.wiring, fmt.Errorf("unbound input port %d", i))
			continue
		}
		rx, err := in.Receiver()
		if err != nil {
			n.wiring = append(n.wiring, fmt.Errorf("input port %d: %w", i, err))
			continue
		}
		n.rx = append(n.rx, rx)
	}
	return n
}

// Name returns the node name.
func (n *Interleaver) Name() string {
	return n.name
}

// Workers returns 1: interleaving is inherently ordered.
func (n *Interleaver) Workers() int {
	return 1
}

// Validate reports wiring problems recorded at construction.
func (n *Interleaver) Validate() error {
	return errors.Join(n.wiring...)
}

// Flush implements cgraph.Node, the interleaver holds no resources.
func (n *Interleaver) Flush() error {
	return nil
}

// Run merges the channels frame by frame until any input reports end
// of stream.
func (n *Interleaver) Run(int) error {
	defer n.out.Close()
	for _, rx := range n.rx {
		defer rx.Close()
	}
	measure := n.meter()

	numChannels := len(n.rx)
	pending := make([][]float64, numChannels)
	output := make([]float64, 0, n.packet+numChannels-1)
outer:
	for {
		for i := 0; i < numChannels; i++ {
			if len(pending[i]) == 0 {
				packet, err := n.receive(i)
				if err != nil {
					// channel i is done: drop the samples already
					// written for this frame
					output = output[:len(output)-i]
					break outer
				}
				pending[i] = packet
			}
			output = append(output, pending[i][0])
			pending[i] = pending[i][1:]
		}
		if len(output) >= n.packet {
			if err := n.out.Send(output); err != nil {
				return &cgraph.NodeError{Node: n.name, Err: err}
			}
			measure(1)
			output = make([]float64, 0, n.packet+numChannels-1)
		}
	}
	if len(output) > 0 {
		if err := n.out.Send(output); err != nil {
			return &cgraph.NodeError{Node: n.name, Err: err}
		}
		measure(1)
	}
	return nil
}

// receive pulls the next non-empty packet of the channel.
func (n *Interleaver) receive(i int) ([]float64, error) {
	for {
		packet, err := n.rx[i].Receive()
		if err != nil {
			return nil, err
		}
		if len(packet) > 0 {
			return packet, nil
		}
	}
}
