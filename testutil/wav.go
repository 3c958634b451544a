package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSpec describes a synthetic PCM WAV file.
type WAVSpec struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int
}

// SpeechWAV is the format the recognizers expect.
func SpeechWAV(frames int) WAVSpec {
	return WAVSpec{SampleRate: 16000, Channels: 1, BitDepth: 16, Frames: frames}
}

// WriteWAV writes a 440 Hz tone in the given format to dir/name and returns its path.
func WriteWAV(t testing.TB, dir, name string, spec WAVSpec) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	data := make([]int, spec.Frames*spec.Channels)
	amp := float64(int(1)<<(spec.BitDepth-2)) - 1
	for i := 0; i < spec.Frames; i++ {
		v := int(amp * math.Sin(2*math.Pi*440*float64(i)/float64(spec.SampleRate)))
		for c := 0; c < spec.Channels; c++ {
			data[i*spec.Channels+c] = v
		}
	}

	enc := wav.NewEncoder(f, spec.SampleRate, spec.BitDepth, spec.Channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: spec.Channels, SampleRate: spec.SampleRate},
		Data:           data,
		SourceBitDepth: spec.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav encoder: %v", err)
	}
	return path
}
