package wav_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/cgraph"
	"pipelined.dev/cgraph/mock"
	"pipelined.dev/cgraph/mpmc"
	"pipelined.dev/cgraph/signal"
	"pipelined.dev/cgraph/wav"
)

const (
	sampleRate  = 44100
	numChannels = 2
	capacity    = 4
)

// writeWav runs a graph saving packets to a wav file at path.
func writeWav(t *testing.T, path string, packets [][]float64) {
	t.Helper()
	i := 0
	out := mpmc.New[[]float64](capacity)
	source := cgraph.NewSource("packets", out.Sender(), func() ([]float64, error) {
		if i == len(packets) {
			return nil, io.EOF
		}
		packet := packets[i]
		i++
		return packet, nil
	})
	in, err := out.Attach(mpmc.Broadcast)
	require.NoError(t, err)
	sink, err := wav.NewSink("write", path, sampleRate, numChannels, signal.BitDepth16, in)
	require.NoError(t, err)

	g := cgraph.New()
	require.NoError(t, g.Add(source, sink))
	require.NoError(t, g.Run())
}

func TestRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)
	path := filepath.Join(t.TempDir(), "out.wav")
	packets := [][]float64{
		{0.1, -0.1, 0.2, -0.2},
		{0.3, -0.3, 0.4, -0.4},
	}
	writeWav(t, path, packets)

	out := mpmc.New[[]float64](capacity)
	pump, err := wav.NewPump("read", path, 2, out.Sender())
	require.NoError(t, err)
	assert.Equal(t, sampleRate, pump.SampleRate())
	assert.Equal(t, numChannels, pump.NumChannels())
	assert.Equal(t, signal.BitDepth16, pump.BitDepth())

	in, err := out.Attach(mpmc.Broadcast)
	require.NoError(t, err)
	collector := &mock.Sink{}
	sink := collector.Sink("collect", in)

	g := cgraph.New()
	require.NoError(t, g.Add(pump, sink))
	require.NoError(t, g.Run())

	var read []float64
	for _, packet := range collector.Values() {
		read = append(read, packet...)
	}
	var sent []float64
	for _, packet := range packets {
		sent = append(sent, packet...)
	}
	require.Len(t, read, len(sent))
	for i := range sent {
		assert.InDelta(t, sent[i], read[i], 1e-3, "sample %d", i)
	}
}

func TestPumpInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file"), 0o644))

	out := mpmc.New[[]float64](capacity)
	_, err := out.Attach(mpmc.Broadcast)
	require.NoError(t, err)
	_, err = wav.NewPump("read", path, 2, out.Sender())
	assert.ErrorIs(t, err, wav.ErrInvalidWav)
}

func TestPumpMissingFile(t *testing.T) {
	out := mpmc.New[[]float64](capacity)
	_, err := wav.NewPump("read", filepath.Join(t.TempDir(), "missing.wav"), 2, out.Sender())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSinkUnsupportedBitDepth(t *testing.T) {
	out := mpmc.New[[]float64](capacity)
	in, err := out.Attach(mpmc.Broadcast)
	require.NoError(t, err)
	_, err = wav.NewSink("write", filepath.Join(t.TempDir(), "out.wav"), sampleRate, numChannels, signal.BitDepth8, in)
	assert.ErrorIs(t, err, wav.ErrUnsupportedBitDepth)
}
