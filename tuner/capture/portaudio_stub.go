//go:build !portaudio

package capture

import (
	"context"
	"errors"
)

// ErrPortAudioUnavailable is returned when the binary was built without
// the portaudio tag.
var ErrPortAudioUnavailable = errors.New("capture: built without portaudio support (use -tags portaudio)")

// PortAudioSource is unavailable in this build.
type PortAudioSource struct{}

// OpenPortAudio always fails in builds without the portaudio tag.
func OpenPortAudio(float64, ...Option) (*PortAudioSource, error) {
	return nil, ErrPortAudioUnavailable
}

// SampleRate returns 0.
func (*PortAudioSource) SampleRate() float64 { return 0 }

// ReadFrame always fails.
func (*PortAudioSource) ReadFrame(context.Context) ([]float64, error) {
	return nil, ErrPortAudioUnavailable
}

// Close is a no-op.
func (*PortAudioSource) Close() error { return nil }
