//go:build cgo

// Package portaudio provides a node to play audio on the default
// device. Packets are interleaved float64 samples normalized to
// [-1, 1].
package portaudio

import (
	"github.com/gordonklaus/portaudio"

	"pipelined.dev/cgraph"
	"pipelined.dev/cgraph/mpmc"
)

// NewSink creates a sink node playing packets on the default output
// device. The portaudio stream is opened on the first packet and
// terminated when the node is flushed. Packets must hold exactly
// packet frames, the last short packet is zero-padded.
func NewSink(name string, sampleRate, numChannels, packet int, in *mpmc.Group[[]float64], options ...cgraph.NodeOption) *cgraph.SinkNode[[]float64] {
	var stream *portaudio.Stream
	buf := make([]float32, packet*numChannels)
	fn := func(p []float64) error {
		if stream == nil {
			if err := portaudio.Initialize(); err != nil {
				return err
			}
			s, err := portaudio.OpenDefaultStream(0, numChannels, float64(sampleRate), packet, &buf)
			if err != nil {
				return err
			}
			if err := s.Start(); err != nil {
				return err
			}
			stream = s
		}
		for i := range buf {
			if i < len(p) {
				buf[i] = float32(p[i])
			} else {
				buf[i] = 0
			}
		}
		return stream.Write()
	}
	options = append(options, cgraph.FlushHook(func() error {
		if stream == nil {
			return nil
		}
		if err := stream.Stop(); err != nil {
			return err
		}
		if err := stream.Close(); err != nil {
			return err
		}
		return portaudio.Terminate()
	}))
	return cgraph.NewSink(name, in, fn, options...)
}
