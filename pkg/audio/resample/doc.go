// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between different sample rates
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates.
// Handles both upsampling and downsampling of planar float32 buffers.
//
// Example:
//
//	r, err := resample.New(48000, 44100)
//	converted := r.Resample(channels)
package resample
