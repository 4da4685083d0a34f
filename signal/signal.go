// Package signal provides primitives to manipulate sampled signals:
// interleave and deinterleave packets, convert bit depth for int
// signals and compute amplification factors.
package signal

import "math"

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// BitDepth contains values required for int-to-float and backward
// conversion.
type BitDepth int

// divider is used when int-to-float conversion is done.
func (bitDepth BitDepth) divider() float64 {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float-to-int conversion is done.
func (bitDepth BitDepth) multiplier() float64 {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// Gain converts an amplification level in dB to a linear factor:
// f(x) = x*10^(dB/10).
func Gain(db float64) float64 {
	return math.Pow(10, db/10)
}

// Amplify multiplies every sample of the packet by the factor, in
// place, and returns the packet.
func Amplify(packet []float64, factor float64) []float64 {
	for i := range packet {
		packet[i] *= factor
	}
	return packet
}

// Interleave merges per-channel packets into a single interleaved
// packet, sample by sample. Channels are consumed up to the shortest
// one so the result always ends on a full frame.
func Interleave(channels [][]float64) []float64 {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	for _, c := range channels {
		if len(c) < frames {
			frames = len(c)
		}
	}
	interleaved := make([]float64, 0, frames*len(channels))
	for i := 0; i < frames; i++ {
		for _, c := range channels {
			interleaved = append(interleaved, c[i])
		}
	}
	return interleaved
}

// Deinterleave splits an interleaved packet into per-channel packets.
// Trailing samples of a partial frame are dropped.
func Deinterleave(interleaved []float64, numChannels int) [][]float64 {
	frames := len(interleaved) / numChannels
	channels := make([][]float64, numChannels)
	for c := range channels {
		channels[c] = make([]float64, frames)
		for i := 0; i < frames; i++ {
			channels[c][i] = interleaved[i*numChannels+c]
		}
	}
	return channels
}

// IntsAsFloats converts an int signal of the given bit depth to floats
// in [-1, 1].
func IntsAsFloats(data []int, bitDepth BitDepth) []float64 {
	divider := bitDepth.divider()
	floats := make([]float64, len(data))
	for i := range data {
		floats[i] = float64(data[i]) / divider
	}
	return floats
}

// FloatsAsInts converts a float signal in [-1, 1] to ints of the given
// bit depth.
func FloatsAsInts(data []float64, bitDepth BitDepth) []int {
	multiplier := bitDepth.multiplier()
	ints := make([]int, len(data))
	for i := range data {
		ints[i] = int(data[i] * multiplier)
	}
	return ints
}
