// Package capture provides audio sources for the tuner engine: WAV files,
// synthetic tones and, with the portaudio build tag, live input devices.
//
// Every source delivers mono float64 frames in [-1, 1] and implements
// tuner.Source.
package capture
