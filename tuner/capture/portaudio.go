//go:build portaudio

package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSource reads mono float32 frames from the default input device.
type PortAudioSource struct {
	stream *portaudio.Stream
	in     []float32
	frame  []float64
	rate   float64
}

// OpenPortAudio initializes PortAudio and starts the default input device
// at sampleRate. Close releases the device and terminates PortAudio.
func OpenPortAudio(sampleRate float64, opts ...Option) (*PortAudioSource, error) {
	cfg := applyOptions(opts)

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("capture: portaudio: %w", err)
	}

	s := &PortAudioSource{
		in:    make([]float32, cfg.frameSize),
		frame: make([]float64, cfg.frameSize),
		rate:  sampleRate,
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, len(s.in), s.in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("capture: open input: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()

		return nil, fmt.Errorf("capture: start input: %w", err)
	}

	s.stream = stream

	return s, nil
}

// SampleRate returns the device rate in Hz.
func (s *PortAudioSource) SampleRate() float64 { return s.rate }

// ReadFrame blocks until the device delivers a frame. An input overflow
// still yields the frame; samples lost to it only cost accuracy.
func (s *PortAudioSource) ReadFrame(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, fmt.Errorf("capture: read input: %w", err)
	}

	for i, v := range s.in {
		s.frame[i] = float64(v)
	}

	return s.frame, nil
}

// Close stops the stream and terminates PortAudio.
func (s *PortAudioSource) Close() error {
	if s.stream == nil {
		return nil
	}

	errStop := s.stream.Stop()
	errClose := s.stream.Close()
	s.stream = nil

	return errors.Join(errStop, errClose, portaudio.Terminate())
}
