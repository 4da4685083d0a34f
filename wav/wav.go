// Package wav provides nodes to read and write wav files. Packets are
// interleaved float64 samples normalized to [-1, 1].
package wav

import (
	"errors"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pipelined.dev/cgraph"
	"pipelined.dev/cgraph/mpmc"
	"pipelined.dev/cgraph/signal"
)

// ErrUnsupportedBitDepth is returned when unsupported bit depth is
// used, only 16 and 32 bits are supported.
var ErrUnsupportedBitDepth = errors.New("wav: only 16 and 32 bit depth are supported")

// ErrInvalidWav is returned when the file is not a valid wav.
var ErrInvalidWav = errors.New("wav: file is not valid")

// Pump is a source node reading a wav file. It cannot be reused for
// consequent runs.
type Pump struct {
	*cgraph.SourceNode[[]float64]
	sampleRate  int
	numChannels int
	bitDepth    signal.BitDepth
}

// NewPump opens the wav file and returns a source node producing
// packets of at most packet frames.
func NewPump(name, path string, packet int, out *mpmc.Sender[[]float64], options ...cgraph.NodeOption) (*Pump, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, ErrInvalidWav
	}
	bitDepth := signal.BitDepth(decoder.BitDepth)
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		file.Close()
		return nil, ErrUnsupportedBitDepth
	}
	numChannels := decoder.Format().NumChannels
	ib := &audio.IntBuffer{
		Format:         decoder.Format(),
		Data:           make([]int, packet*numChannels),
		SourceBitDepth: int(decoder.BitDepth),
	}
	fn := func() ([]float64, error) {
		read, err := decoder.PCMBuffer(ib)
		if err != nil {
			return nil, err
		}
		if read == 0 {
			return nil, io.EOF
		}
		return signal.IntsAsFloats(ib.Data[:read], bitDepth), nil
	}
	options = append(options, cgraph.FlushHook(file.Close))
	return &Pump{
		SourceNode:  cgraph.NewSource(name, out, fn, options...),
		sampleRate:  int(decoder.SampleRate),
		numChannels: numChannels,
		bitDepth:    bitDepth,
	}, nil
}

// SampleRate returns the sample rate of the wav file.
func (p *Pump) SampleRate() int {
	return p.sampleRate
}

// NumChannels returns the number of channels of the wav file.
func (p *Pump) NumChannels() int {
	return p.numChannels
}

// BitDepth returns the bit depth of the wav file.
func (p *Pump) BitDepth() signal.BitDepth {
	return p.bitDepth
}

// NewSink creates a sink node saving packets to a wav file. The
// encoder is finalized when the node is flushed.
func NewSink(name, path string, sampleRate, numChannels int, bitDepth signal.BitDepth, in *mpmc.Group[[]float64], options ...cgraph.NodeOption) (*cgraph.SinkNode[[]float64], error) {
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		return nil, ErrUnsupportedBitDepth
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	encoder := wav.NewEncoder(file, sampleRate, int(bitDepth), numChannels, 1)
	fn := func(packet []float64) error {
		return encoder.Write(&audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: numChannels,
				SampleRate:  sampleRate,
			},
			Data:           signal.FloatsAsInts(packet, bitDepth),
			SourceBitDepth: int(bitDepth),
		})
	}
	options = append(options, cgraph.FlushHook(func() error {
		if err := encoder.Close(); err != nil {
			file.Close()
			return err
		}
		return file.Close()
	}))
	return cgraph.NewSink(name, in, fn, options...), nil
}
