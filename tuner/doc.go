// Package tuner runs the pitch-detection pipeline on a live sample stream.
//
// An Engine owns the decimator, the temporal sample ring and the current
// configuration snapshot. Captured frames are pushed from any goroutine;
// a scheduler goroutine runs one Analyzer cycle per calculation tick and
// hands the newest Result (and Spectrum) to a Publisher at the
// visualization rate.
//
// All failure modes are absorbed: too little data skips a cycle, a quiet
// or noisy input yields a Result with SignalPresent unset, invalid
// settings are corrected on Reconfigure, and capture errors degrade the
// affected cycles to no-signal results.
package tuner
