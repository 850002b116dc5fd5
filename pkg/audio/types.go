// ABOUTME: Audio type definitions
// ABOUTME: Defines decoded source buffers and playable sample regions
package audio

import (
	"fmt"
	"time"
)

// SourceBuffer holds a fully decoded audio file as planar float32 PCM,
// one slice per channel, all slices the same length.
type SourceBuffer struct {
	Channels   [][]float32
	SampleRate int
}

// NumChannels returns the channel count.
func (b *SourceBuffer) NumChannels() int {
	return len(b.Channels)
}

// Frames returns the per-channel sample count.
func (b *SourceBuffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer length as wall time.
func (b *SourceBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return DurationForFrames(b.Frames(), b.SampleRate)
}

// Validate checks structural consistency: a positive sample rate, at least
// one channel, and equal-length channel slices.
func (b *SourceBuffer) Validate() error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", b.SampleRate)
	}
	if len(b.Channels) == 0 {
		return fmt.Errorf("no channels")
	}
	frames := len(b.Channels[0])
	for i, ch := range b.Channels {
		if len(ch) != frames {
			return fmt.Errorf("channel %d has %d frames, channel 0 has %d", i, len(ch), frames)
		}
	}
	return nil
}

// Slice copies the [start, end) window into an independent Region.
// Bounds are validated against the buffer: 0 <= start < end <= Duration().
func (b *SourceBuffer) Slice(start, end time.Duration) (Region, error) {
	if err := b.Validate(); err != nil {
		return Region{}, err
	}
	if start < 0 || end <= start || end > b.Duration() {
		return Region{}, fmt.Errorf("region [%v, %v) out of range for %v buffer", start, end, b.Duration())
	}
	startFrame := FramesForDuration(start, b.SampleRate)
	endFrame := FramesForDuration(end, b.SampleRate)
	if endFrame > b.Frames() {
		endFrame = b.Frames()
	}
	if endFrame <= startFrame {
		return Region{}, fmt.Errorf("region [%v, %v) spans no frames at %d Hz", start, end, b.SampleRate)
	}

	channels := make([][]float32, len(b.Channels))
	for i, ch := range b.Channels {
		out := make([]float32, endFrame-startFrame)
		copy(out, ch[startFrame:endFrame])
		channels[i] = out
	}
	return Region{Channels: channels, SampleRate: b.SampleRate}, nil
}

// Region is an independent, immediately playable slice of sample data.
// It shares no memory with the SourceBuffer it was cut from.
type Region struct {
	Channels   [][]float32
	SampleRate int
}

// NumChannels returns the channel count.
func (r Region) NumChannels() int {
	return len(r.Channels)
}

// Frames returns the per-channel sample count.
func (r Region) Frames() int {
	if len(r.Channels) == 0 {
		return 0
	}
	return len(r.Channels[0])
}

// Duration returns the region length as wall time.
func (r Region) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return DurationForFrames(r.Frames(), r.SampleRate)
}

// FramesForDuration converts wall time to a frame count at the given rate.
func FramesForDuration(d time.Duration, sampleRate int) int {
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}

// DurationForFrames converts a frame count at the given rate to wall time.
func DurationForFrames(frames, sampleRate int) time.Duration {
	return time.Duration(int64(frames) * int64(time.Second) / int64(sampleRate))
}
