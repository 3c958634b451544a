package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrUnsupportedFormat is returned for files that are not PCM WAV in the
// expected layout.
var ErrUnsupportedFormat = errors.New("audio: unsupported wav format")

const pcmFormat = 1

// Format is a PCM sample layout.
type Format struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
	BitDepth   int `json:"bit_depth"`
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

func (f Format) bytesPerFrame() int {
	return f.Channels * f.BitDepth / 8
}

// Reader streams PCM data from a validated WAV file.
type Reader struct {
	f        *os.File
	dec      *wav.Decoder
	format   Format
	duration time.Duration
}

// OpenWAV opens path and checks it is PCM WAV in exactly the wanted format.
func OpenWAV(path string, want Format) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if dec.NumChans == 0 || dec.BitDepth == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a wav file", ErrUnsupportedFormat, path)
	}

	got := Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans), BitDepth: int(dec.BitDepth)}
	if dec.WavAudioFormat != pcmFormat || got != want {
		f.Close()
		return nil, fmt.Errorf("%w: got %s (format %d), want %s PCM", ErrUnsupportedFormat, got, dec.WavAudioFormat, want)
	}

	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	bytesPerSec := int64(got.SampleRate * got.bytesPerFrame())
	duration := time.Duration(dec.PCMLen() * int64(time.Second) / bytesPerSec)

	return &Reader{f: f, dec: dec, format: got, duration: duration}, nil
}

// Format returns the validated sample layout.
func (r *Reader) Format() Format { return r.format }

// Duration returns the length of the PCM data.
func (r *Reader) Duration() time.Duration { return r.duration }

// Chunks calls fn with successive little-endian PCM chunks of at most frames
// frames each. The slice passed to fn is reused between calls.
func (r *Reader) Chunks(frames int, fn func(pcm []byte) error) error {
	if frames <= 0 {
		frames = DefaultChunkFrames
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: r.format.Channels, SampleRate: r.format.SampleRate},
		Data:           make([]int, frames*r.format.Channels),
		SourceBitDepth: r.format.BitDepth,
	}
	out := make([]byte, frames*r.format.bytesPerFrame())

	for {
		n, err := r.dec.PCMBuffer(buf)
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return fmt.Errorf("audio: read pcm: %w", err)
		}
		if n > 0 {
			for i, v := range buf.Data[:n] {
				binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
			}
			if err := fn(out[:n*2]); err != nil {
				return err
			}
		}
		if n == 0 || eof {
			return nil
		}
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}
