//go:build cgo

// Package mp3 provides a node to write mp3 files. Packets are
// interleaved float64 samples normalized to [-1, 1].
package mp3

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/viert/lame"

	"pipelined.dev/cgraph"
	"pipelined.dev/cgraph/mpmc"
	"pipelined.dev/cgraph/signal"
)

// NewSink creates a sink node encoding packets to an mp3 file with the
// given bit rate (kbps) and quality (0 best to 9 worst). The encoder
// is finalized when the node is flushed.
func NewSink(name, path string, sampleRate, numChannels, bitRate, quality int, in *mpmc.Group[[]float64], options ...cgraph.NodeOption) (*cgraph.SinkNode[[]float64], error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	writer := lame.NewWriter(file)
	writer.Encoder.SetBitrate(bitRate)
	writer.Encoder.SetQuality(quality)
	writer.Encoder.SetNumChannels(numChannels)
	writer.Encoder.SetInSamplerate(sampleRate)
	writer.Encoder.SetMode(lame.JOINT_STEREO)
	writer.Encoder.SetVBR(lame.VBR_RH)
	writer.Encoder.InitParams()

	fn := func(packet []float64) error {
		buf := new(bytes.Buffer)
		for _, v := range signal.FloatsAsInts(packet, signal.BitDepth16) {
			if err := binary.Write(buf, binary.LittleEndian, int16(v)); err != nil {
				return err
			}
		}
		if _, err := writer.Write(buf.Bytes()); err != nil {
			return err
		}
		return nil
	}
	options = append(options, cgraph.FlushHook(func() error {
		if err := writer.Close(); err != nil {
			file.Close()
			return err
		}
		return file.Close()
	}))
	return cgraph.NewSink(name, in, fn, options...), nil
}
