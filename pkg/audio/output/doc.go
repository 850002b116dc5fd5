// ABOUTME: Audio output package for voice playback
// ABOUTME: Provides the Backend interface and oto, malgo, and simulated implementations
// Package output provides the platform boundary for sample playback.
//
// A Backend owns one output device and plays scheduled regions as
// independent, layerable voices:
//   - Oto: one oto player per voice, mixed by the shared oto context
//   - Malgo: miniaudio device whose data callback mixes all voices
//   - Sim: deterministic in-memory backend for tests and self-checks
//
// Example:
//
//	be := output.NewOto()
//	err := be.Open(output.Config{SampleRate: 44100, Channels: 2})
//	handle, err := be.Schedule(region, time.Now(), 1.0, nil)
//	handle.Stop()
package output
