//go:build cgo

package mp3_test

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/cgraph"
	"pipelined.dev/cgraph/mp3"
	"pipelined.dev/cgraph/mpmc"
)

func TestSink(t *testing.T) {
	defer goleak.VerifyNone(t)
	path := filepath.Join(t.TempDir(), "out.mp3")

	// a 440Hz tone, 10 stereo packets of 512 frames
	const (
		packets     = 10
		packetSize  = 512
		sampleRate  = 44100
		numChannels = 2
	)
	produced := 0
	out := mpmc.New[[]float64](4)
	source := cgraph.NewSource("tone", out.Sender(), func() ([]float64, error) {
		if produced == packets {
			return nil, io.EOF
		}
		packet := make([]float64, packetSize*numChannels)
		for i := 0; i < packetSize; i++ {
			v := 0.5 * math.Sin(2*math.Pi*440*float64(produced*packetSize+i)/sampleRate)
			packet[i*numChannels] = v
			packet[i*numChannels+1] = v
		}
		produced++
		return packet, nil
	})
	in, err := out.Attach(mpmc.Broadcast)
	require.NoError(t, err)
	sink, err := mp3.NewSink("write", path, sampleRate, numChannels, 192, 2, in)
	require.NoError(t, err)

	g := cgraph.New()
	require.NoError(t, g.Add(source, sink))
	require.NoError(t, g.Run())

	stat, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, stat.Size())
}
