package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned for files the WAV decoder rejects.
var ErrInvalidWAV = errors.New("capture: invalid WAV file")

// WAVSource streams a PCM WAV file as mono frames. Multi-channel files are
// mixed down by averaging.
type WAVSource struct {
	cfg    sourceConfig
	dec    *wav.Decoder
	closer io.Closer
	buf    *audio.IntBuffer
	frame  []float64
	scale  float64
	chans  int
	rate   float64
	pace   *pacer
}

// OpenWAV opens path for streaming.
func OpenWAV(path string, opts ...Option) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	s, err := NewWAVSource(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}

	s.closer = f

	return s, nil
}

// NewWAVSource decodes WAV data from r.
func NewWAVSource(r io.ReadSeeker, opts ...Option) (*WAVSource, error) {
	cfg := applyOptions(opts)

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	chans := int(dec.NumChans)
	if chans < 1 || dec.SampleRate == 0 || dec.BitDepth == 0 {
		return nil, fmt.Errorf("%w: %d channels, %d Hz, %d bit", ErrInvalidWAV, chans, dec.SampleRate, dec.BitDepth)
	}

	s := &WAVSource{
		cfg: cfg,
		dec: dec,
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: chans,
				SampleRate:  int(dec.SampleRate),
			},
			Data:           make([]int, cfg.frameSize*chans),
			SourceBitDepth: int(dec.BitDepth),
		},
		frame: make([]float64, cfg.frameSize),
		scale: float64(int(1) << (uint(dec.BitDepth) - 1)),
		chans: chans,
		rate:  float64(dec.SampleRate),
	}

	if cfg.realtime {
		s.pace = newPacer(cfg.frameSize, s.rate)
	}

	return s, nil
}

// SampleRate returns the file sample rate in Hz.
func (s *WAVSource) SampleRate() float64 { return s.rate }

// Channels returns the number of channels in the file.
func (s *WAVSource) Channels() int { return s.chans }

// ReadFrame returns the next mono frame. The last frame of a file may be
// shorter than the frame size. At the end it returns io.EOF unless the
// source loops.
func (s *WAVSource) ReadFrame(ctx context.Context) ([]float64, error) {
	if s.pace != nil {
		if err := s.pace.wait(ctx); err != nil {
			return nil, err
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := s.read()
	if n == 0 && err == nil && s.cfg.loop {
		if err := s.dec.Rewind(); err != nil {
			return nil, fmt.Errorf("capture: rewind: %w", err)
		}

		n, err = s.read()
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("capture: wav: %w", err)
	}

	if n == 0 {
		return nil, io.EOF
	}

	frames := n / s.chans
	out := s.frame[:frames]

	for i := range out {
		var sum int
		for c := range s.chans {
			sum += s.buf.Data[i*s.chans+c]
		}

		out[i] = float64(sum) / (s.scale * float64(s.chans))
	}

	return out, nil
}

func (s *WAVSource) read() (int, error) {
	s.buf.Data = s.buf.Data[:cap(s.buf.Data)]

	n, err := s.dec.PCMBuffer(s.buf)
	if errors.Is(err, io.EOF) {
		err = nil
	}

	return n, err
}

// Close releases the underlying file, if the source opened it.
func (s *WAVSource) Close() error {
	if s.closer == nil {
		return nil
	}

	err := s.closer.Close()
	s.closer = nil

	return err
}

// ReadAll decodes the remaining file into one mono slice.
func (s *WAVSource) ReadAll(ctx context.Context) ([]float64, error) {
	var out []float64

	for {
		frame, err := s.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}

		if err != nil {
			return out, err
		}

		out = append(out, frame...)
	}
}
