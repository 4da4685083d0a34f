package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"pipelined.dev/cgraph"
	"pipelined.dev/cgraph/mpmc"
	"pipelined.dev/cgraph/pcm"
	"pipelined.dev/cgraph/signal"
	wavsink "pipelined.dev/cgraph/wav"
)

type amplifyCommand struct {
	in        string
	channels  int
	informat  string
	gain      float64
	outformat string
	out       string
	wav       string
	rate      int
	packet    int
	capacity  int
}

// Implement the command interface.
func (cmd *amplifyCommand) Name() string {
	return "amplify"
}

func (cmd *amplifyCommand) Help() string {
	return "Amplify and interleave per-channel PCM files"
}

func (cmd *amplifyCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.in, "in", "", "directory with per-channel files 0.pcm, 1.pcm, ... (required)")
	fs.IntVar(&cmd.channels, "channels", 0, "number of channel files to read (required)")
	fs.StringVar(&cmd.informat, "informat", "int", "input sample format: 'int' or 'float'")
	fs.Float64Var(&cmd.gain, "gain", 0, "amplification in dB")
	fs.StringVar(&cmd.outformat, "outformat", "int", "output sample format: 'int' or 'float'")
	fs.StringVar(&cmd.out, "out", "", "output file for interleaved pcm, stdout when empty")
	fs.StringVar(&cmd.wav, "wav", "", "optional wav copy of the interleaved output")
	fs.IntVar(&cmd.rate, "rate", 44100, "sample rate used for the wav copy")
	fs.IntVar(&cmd.packet, "buffer", 1024, "samples per packet")
	fs.IntVar(&cmd.capacity, "capacity", 128, "pending packets per channel")
}

func (cmd *amplifyCommand) Run() error {
	if err := cmd.validate(); err != nil {
		return err
	}
	informat, err := pcm.ParseFormat(cmd.informat)
	if err != nil {
		return err
	}
	outformat, err := pcm.ParseFormat(cmd.outformat)
	if err != nil {
		return err
	}

	g := cgraph.New(cgraph.Name("amplify"))
	factor := signal.Gain(cmd.gain)
	// the gain stage is the only consumer of its input channel, so
	// amplifying in place is safe
	amplify := func(packet []float64) ([]float64, error) {
		return signal.Amplify(packet, factor), nil
	}

	// one pump and one gain stage per channel file
	interleaverIn := make([]*mpmc.Group[[]float64], cmd.channels)
	for i := 0; i < cmd.channels; i++ {
		read := mpmc.New[[]float64](cmd.capacity)
		pump := pcm.NewPump(
			fmt.Sprintf("read-%d", i),
			filepath.Join(cmd.in, fmt.Sprintf("%d.pcm", i)),
			informat,
			cmd.packet,
			read.Sender(),
		)
		readOut, err := read.Attach(mpmc.Shared)
		if err != nil {
			return err
		}
		amplified := mpmc.New[[]float64](cmd.capacity)
		gain := cgraph.NewProc(fmt.Sprintf("gain-%d", i), readOut, amplified.Sender(), amplify)
		if interleaverIn[i], err = amplified.Attach(mpmc.Shared); err != nil {
			return err
		}
		if err := g.Add(pump, gain); err != nil {
			return err
		}
	}

	interleaved := mpmc.New[[]float64](cmd.capacity)
	interleaver := pcm.NewInterleaver("interleave", interleaverIn, interleaved.Sender(), cmd.packet)
	if err := g.Add(interleaver); err != nil {
		return err
	}

	sinkIn, err := interleaved.Attach(mpmc.Broadcast)
	if err != nil {
		return err
	}
	if cmd.out == "" {
		if err := g.Add(pcm.NewSink("write", os.Stdout, outformat, sinkIn)); err != nil {
			return err
		}
	} else {
		sink, err := pcm.NewFileSink("write", cmd.out, outformat, sinkIn)
		if err != nil {
			return err
		}
		if err := g.Add(sink); err != nil {
			return err
		}
	}

	// a second broadcast group observes the same packets independently
	if cmd.wav != "" {
		wavIn, err := interleaved.Attach(mpmc.Broadcast)
		if err != nil {
			return err
		}
		in := wavIn
		if informat == pcm.Int16 {
			// wav encoding expects samples in [-1, 1]. Packets are
			// shared with the pcm sink, so normalize into a copy.
			normalized := mpmc.New[[]float64](cmd.capacity)
			norm := cgraph.NewProc("normalize", wavIn, normalized.Sender(), normalizeInt16)
			if err := g.Add(norm); err != nil {
				return err
			}
			if in, err = normalized.Attach(mpmc.Shared); err != nil {
				return err
			}
		}
		sink, err := wavsink.NewSink("write-wav", cmd.wav, cmd.rate, cmd.channels, signal.BitDepth16, in)
		if err != nil {
			return err
		}
		if err := g.Add(sink); err != nil {
			return err
		}
	}

	return g.Run()
}

func normalizeInt16(packet []float64) ([]float64, error) {
	normalized := make([]float64, len(packet))
	for i := range packet {
		normalized[i] = packet[i] / math.MaxInt16
	}
	return normalized, nil
}

func (cmd *amplifyCommand) validate() error {
	var message string
	if cmd.in == "" {
		message += "Missing -in required flag\n"
	}
	if cmd.channels < 1 {
		message += "Flag -channels must be positive\n"
	}
	if message != "" {
		return fmt.Errorf("%s", message)
	}
	return nil
}
