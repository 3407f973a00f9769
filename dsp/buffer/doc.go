// Package buffer provides the sample storage used by the tuner pipeline:
// a fixed-capacity ring that keeps the most recent audio samples, and a
// pool of reusable scratch buffers for per-cycle snapshots.
//
// Neither type is safe for concurrent use; callers serialize access
// (the tuner engine guards its ring with a mutex).
package buffer
