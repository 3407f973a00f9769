// Package spectrum turns a block of samples into a frequency estimate.
//
// The pipeline has three stages:
//
//   - [Estimator] windows the newest samples and computes a coarse power
//     spectrum with a fixed-size FFT.
//   - [PickPeaks] selects candidate peaks above a median noise floor,
//     rejecting weak neighbours of a dominant peak.
//   - [Refiner] zooms into each candidate with a few narrow-band DFT passes
//     (evaluated with [Goertzel]) and a Newton polish on the DTFT power,
//     reaching sub-Hz precision without a large transform.
//
// Types in this package are not safe for concurrent use.
package spectrum
