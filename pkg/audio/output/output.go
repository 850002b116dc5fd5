// ABOUTME: Audio backend interface definition
// ABOUTME: Common interface for voice playback backends
package output

import (
	"errors"
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
)

// Sentinel errors returned by backends.
var (
	// ErrNotOpen is returned when scheduling against a backend that has
	// not been opened or has been closed.
	ErrNotOpen = errors.New("output not open")

	// ErrRetuneUnsupported is returned by backends whose device buffer
	// cannot change after open.
	ErrRetuneUnsupported = errors.New("device buffer cannot be retuned")
)

// Config describes how a backend opens its device.
type Config struct {
	SampleRate int
	Channels   int
	// BufferSize is the device buffer target. Smaller buffers reduce
	// latency at the cost of underrun risk. Zero selects the backend
	// default.
	BufferSize time.Duration
}

// WithDefaults fills zero fields with interactive-playback defaults.
func (c Config) WithDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.Channels <= 0 {
		c.Channels = 2
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 10 * time.Millisecond
	}
	return c
}

// DeviceLatency reports the fixed delay components of the output path.
type DeviceLatency struct {
	// Base is the delay before scheduled samples reach the device.
	Base time.Duration
	// Output is the device buffer depth.
	Output time.Duration
}

// Total returns the combined output path delay.
func (l DeviceLatency) Total() time.Duration {
	return l.Base + l.Output
}

// VoiceHandle controls one scheduled voice.
type VoiceHandle interface {
	// Stop silences the voice immediately. Stop is idempotent and safe
	// after natural completion.
	Stop()
}

// Backend is the platform boundary for voice playback. Implementations
// own the device and play each scheduled region as an independent voice.
type Backend interface {
	// Open acquires the output device. Opening an already-open backend
	// with the same config is a no-op.
	Open(cfg Config) error

	// Schedule queues a region to start playing at deadline (immediately
	// when the deadline has passed) at the given gain. The done callback,
	// when non-nil, fires exactly once when the voice ends, whether it
	// plays out or is stopped.
	Schedule(region audio.Region, deadline time.Time, gain float64, done func()) (VoiceHandle, error)

	// Latency reports the current device delay components.
	Latency() DeviceLatency

	// Retune requests a smaller device buffer. Best effort: backends
	// that cannot change an open device return ErrRetuneUnsupported.
	Retune(buffer time.Duration) error

	// Close stops all voices and releases the device.
	Close() error
}
