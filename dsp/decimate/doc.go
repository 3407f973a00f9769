// Package decimate reduces the sample rate of a stream by an integer factor
// after anti-alias low-pass filtering with a Kaiser-windowed sinc FIR.
//
// A Decimator keeps filter history across calls, so a stream may be fed in
// frames of any size:
//
//	d, _ := decimate.New(5)
//	out := d.Process(frame) // len(out) is about len(frame)/5
//
// Factor 1 bypasses filtering entirely.
package decimate
