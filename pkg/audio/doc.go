// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines SourceBuffer, Region types and sample conversion functions
// Package audio provides fundamental audio types and utilities for sample playback.
//
// This package defines core types used throughout the chop-shop library:
//   - SourceBuffer: A fully decoded audio file as planar float32 PCM
//   - Region: An independent, immediately playable slice of a SourceBuffer
//
// It also provides utilities for converting between sample formats:
//   - float32 ↔ int16 conversions (clamped)
//   - planar ↔ interleaved layout conversions
//
// Example:
//
//	buf := &audio.SourceBuffer{
//	    Channels:   [][]float32{left, right},
//	    SampleRate: 44100,
//	}
//
//	// Cut the first half second into a playable region
//	region, err := buf.Slice(0, 500*time.Millisecond)
package audio
