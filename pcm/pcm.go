// Package pcm provides nodes to read and write raw headerless PCM
// files: per-channel sources, an interleaving fan-in and interleaved
// sinks. Samples are kept as raw values, no normalization is applied.
package pcm

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"pipelined.dev/cgraph"
	"pipelined.dev/cgraph/mpmc"
)

// Format is the sample encoding of a PCM file. Samples are always
// little-endian.
type Format int

const (
	// Int16 is 16-bit signed integer encoding.
	Int16 Format = iota
	// Float32 is 32-bit float encoding.
	Float32
)

// ErrMisaligned is returned when a file does not align to the sample
// size of its format.
var ErrMisaligned = errors.New("pcm: file is not aligned to the sample size")

// ParseFormat parses a sample format name: "int" or "float".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "int":
		return Int16, nil
	case "float":
		return Float32, nil
	}
	return 0, fmt.Errorf("pcm: unknown format %q", s)
}

// String returns the format name.
func (f Format) String() string {
	switch f {
	case Int16:
		return "int"
	case Float32:
		return "float"
	}
	return "unknown"
}

// sampleSize returns the sample size in bytes.
func (f Format) sampleSize() int {
	if f == Int16 {
		return 2
	}
	return 4
}

// NewPump returns a source node reading one channel file in packets of
// at most packet samples. The file is opened on the first call and
// closed when the node is flushed. A file not aligned to the sample
// size fails the node with ErrMisaligned.
func NewPump(name, path string, format Format, packet int, out *mpmc.Sender[[]float64], options ...cgraph.NodeOption) *cgraph.SourceNode[[]float64] {
	var file *os.File
	buf := make([]byte, packet*format.sampleSize())
	fn := func() ([]float64, error) {
		if file == nil {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			file = f
		}
		n, err := io.ReadFull(file, buf)
		if n == 0 {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, io.EOF
			}
			return nil, err
		}
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return nil, err
		}
		if n%format.sampleSize() != 0 {
			return nil, ErrMisaligned
		}
		return decode(buf[:n], format), nil
	}
	options = append(options, cgraph.FlushHook(func() error {
		if file == nil {
			return nil
		}
		return file.Close()
	}))
	return cgraph.NewSource(name, out, fn, options...)
}

// decode converts little-endian bytes to samples. Values are plain
// casts, int16 samples keep their integer range.
func decode(b []byte, format Format) []float64 {
	switch format {
	case Int16:
		packet := make([]float64, len(b)/2)
		for i := range packet {
			packet[i] = float64(int16(binary.LittleEndian.Uint16(b[i*2:])))
		}
		return packet
	default:
		packet := make([]float64, len(b)/4)
		for i := range packet {
			packet[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
		}
		return packet
	}
}

// NewSink returns a sink node writing interleaved packets to w.
func NewSink(name string, w io.Writer, format Format, in *mpmc.Group[[]float64], options ...cgraph.NodeOption) *cgraph.SinkNode[[]float64] {
	return cgraph.NewSink(name, in, sinkFunc(w, format), options...)
}

// NewFileSink returns a sink node writing interleaved packets to a
// file. Writes are buffered; the buffer is flushed and the file closed
// when the node is flushed.
func NewFileSink(name, path string, format Format, in *mpmc.Group[[]float64], options ...cgraph.NodeOption) (*cgraph.SinkNode[[]float64], error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buffered := bufio.NewWriter(file)
	options = append(options, cgraph.FlushHook(func() error {
		if err := buffered.Flush(); err != nil {
			file.Close()
			return err
		}
		return file.Close()
	}))
	return cgraph.NewSink(name, in, sinkFunc(buffered, format), options...), nil
}

func sinkFunc(w io.Writer, format Format) cgraph.SinkFunc[[]float64] {
	var buf []byte
	return func(packet []float64) error {
		size := format.sampleSize()
		if cap(buf) < len(packet)*size {
			buf = make([]byte, len(packet)*size)
		}
		buf = buf[:len(packet)*size]
		for i, v := range packet {
			switch format {
			case Int16:
				binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v)))
			default:
				binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
			}
		}
		_, err := w.Write(buf)
		return err
	}
}
