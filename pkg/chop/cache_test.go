// ABOUTME: Tests for the sample preload cache
// ABOUTME: Covers region validation, last-write-wins replacement, and state tracking
package chop

import (
	"errors"
	"testing"
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
)

// testSource builds a stereo ramp of the given length.
func testSource(rate int, d time.Duration) *audio.SourceBuffer {
	frames := audio.FramesForDuration(d, rate)
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := range left {
		left[i] = float32(i) / float32(frames)
		right[i] = -left[i]
	}
	return &audio.SourceBuffer{Channels: [][]float32{left, right}, SampleRate: rate}
}

func TestPreloadAndGet(t *testing.T) {
	c := NewPreloadCache(44100)
	src := testSource(44100, time.Second)

	if err := c.Preload("kick", src, 0, 100*time.Millisecond); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}

	s, ok := c.Get("kick")
	if !ok {
		t.Fatal("Get returned no entry after Preload")
	}
	if s.State != StateReady {
		t.Errorf("State = %q, want %q", s.State, StateReady)
	}
	if s.PadID != "kick" {
		t.Errorf("PadID = %q, want kick", s.PadID)
	}
	if s.Volume != 1.0 {
		t.Errorf("Volume = %v, want 1.0", s.Volume)
	}
	if got, want := s.Region.Frames(), 4410; got != want {
		t.Errorf("Frames = %d, want %d", got, want)
	}
	if s.LoadedAt.IsZero() {
		t.Error("LoadedAt not set")
	}
	if c.Len() != 1 || c.ReadyCount() != 1 {
		t.Errorf("Len = %d, ReadyCount = %d, want 1 and 1", c.Len(), c.ReadyCount())
	}
}

func TestPreloadRejectsBadRegions(t *testing.T) {
	src := testSource(44100, time.Second)

	tests := []struct {
		name       string
		start, end time.Duration
	}{
		{"negative start", -time.Millisecond, 100 * time.Millisecond},
		{"zero length", 50 * time.Millisecond, 50 * time.Millisecond},
		{"inverted", 200 * time.Millisecond, 100 * time.Millisecond},
		{"past the end", 0, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewPreloadCache(44100)
			err := c.Preload("snare", src, tt.start, tt.end)
			if !errors.Is(err, ErrInvalidRegion) {
				t.Fatalf("Preload(%v, %v) = %v, want ErrInvalidRegion", tt.start, tt.end, err)
			}
			if c.Len() != 0 {
				t.Errorf("cache has %d entries after rejected preload, want 0", c.Len())
			}
		})
	}
}

func TestPreloadFailureKeepsPreviousEntry(t *testing.T) {
	c := NewPreloadCache(44100)
	src := testSource(44100, time.Second)

	if err := c.Preload("kick", src, 0, 100*time.Millisecond); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	if err := c.Preload("kick", src, 0, 5*time.Second); err == nil {
		t.Fatal("out-of-range Preload succeeded")
	}

	s, ok := c.Get("kick")
	if !ok || s.State != StateReady {
		t.Fatalf("previous entry gone after failed preload: ok=%v state=%q", ok, s.State)
	}
	if got, want := s.Region.Frames(), 4410; got != want {
		t.Errorf("Frames = %d, want %d from the previous region", got, want)
	}
}

func TestPreloadRejectsBadArguments(t *testing.T) {
	c := NewPreloadCache(44100)
	src := testSource(44100, time.Second)

	if err := c.Preload("", src, 0, time.Second); err == nil {
		t.Error("empty pad ID accepted")
	}
	if err := c.Preload("kick", nil, 0, time.Second); err == nil {
		t.Error("nil source accepted")
	}
	if c.Len() != 0 {
		t.Errorf("cache has %d entries, want 0", c.Len())
	}
}

func TestPreloadLastWriteWins(t *testing.T) {
	c := NewPreloadCache(44100)
	src := testSource(44100, time.Second)

	if err := c.Preload("kick", src, 0, 100*time.Millisecond); err != nil {
		t.Fatalf("first Preload failed: %v", err)
	}
	if !c.SetVolume("kick", 0.5) {
		t.Fatal("SetVolume found no entry")
	}
	if err := c.Preload("kick", src, 0, 200*time.Millisecond); err != nil {
		t.Fatalf("second Preload failed: %v", err)
	}

	s, _ := c.Get("kick")
	if got, want := s.Region.Frames(), 8820; got != want {
		t.Errorf("Frames = %d, want %d from the second region", got, want)
	}
	if s.Volume != 0.5 {
		t.Errorf("Volume = %v, want 0.5 carried over from the replaced entry", s.Volume)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestPreloadResamplesToTargetRate(t *testing.T) {
	c := NewPreloadCache(44100)
	src := testSource(22050, time.Second)

	if err := c.Preload("kick", src, 0, 100*time.Millisecond); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}

	s, _ := c.Get("kick")
	if s.Region.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", s.Region.SampleRate)
	}
	if got, want := s.Region.Frames(), 4410; got != want {
		t.Errorf("Frames = %d, want %d after resampling", got, want)
	}
}

func TestInvalidate(t *testing.T) {
	c := NewPreloadCache(44100)
	src := testSource(44100, time.Second)

	if err := c.Preload("kick", src, 0, 100*time.Millisecond); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	if !c.Invalidate("kick") {
		t.Error("Invalidate = false for a present pad")
	}
	if _, ok := c.Get("kick"); ok {
		t.Error("entry still present after Invalidate")
	}
	if c.Invalidate("kick") {
		t.Error("second Invalidate = true")
	}
}

func TestSetVolumeClamps(t *testing.T) {
	c := NewPreloadCache(44100)
	src := testSource(44100, time.Second)
	if err := c.Preload("kick", src, 0, 100*time.Millisecond); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}

	tests := []struct {
		in, want float64
	}{
		{0.7, 0.7},
		{1.5, 1.0},
		{-0.2, 0.0},
	}
	for _, tt := range tests {
		if !c.SetVolume("kick", tt.in) {
			t.Fatalf("SetVolume(%v) found no entry", tt.in)
		}
		s, _ := c.Get("kick")
		if s.Volume != tt.want {
			t.Errorf("SetVolume(%v): Volume = %v, want %v", tt.in, s.Volume, tt.want)
		}
	}
	if c.SetVolume("missing", 0.5) {
		t.Error("SetVolume = true for an unknown pad")
	}
}

func TestPendingAndFailedMarkers(t *testing.T) {
	c := NewPreloadCache(44100)
	src := testSource(44100, time.Second)

	c.markPending("snare")
	if s, ok := c.Get("snare"); !ok || s.State != StatePending {
		t.Fatalf("after markPending: ok=%v state=%q, want pending", ok, s.State)
	}

	loadErr := errors.New("decode failed")
	c.markFailed("snare", loadErr)
	s, _ := c.Get("snare")
	if s.State != StateFailed {
		t.Errorf("State = %q, want %q", s.State, StateFailed)
	}
	if !errors.Is(s.Err, loadErr) {
		t.Errorf("Err = %v, want %v", s.Err, loadErr)
	}
	if c.ReadyCount() != 0 {
		t.Errorf("ReadyCount = %d, want 0", c.ReadyCount())
	}

	// A Ready entry keeps serving while a reload is in flight.
	if err := c.Preload("kick", src, 0, 100*time.Millisecond); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	c.markPending("kick")
	if s, _ := c.Get("kick"); s.State != StateReady {
		t.Errorf("markPending shadowed a ready entry: state %q", s.State)
	}
	c.markFailed("kick", loadErr)
	if s, _ := c.Get("kick"); s.State != StateReady {
		t.Errorf("markFailed shadowed a ready entry: state %q", s.State)
	}
}

func TestStatesAndClear(t *testing.T) {
	c := NewPreloadCache(44100)
	src := testSource(44100, time.Second)

	if err := c.Preload("kick", src, 0, 100*time.Millisecond); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	c.markFailed("snare", errors.New("no such file"))

	states := c.States()
	if states["kick"] != StateReady || states["snare"] != StateFailed {
		t.Errorf("States = %v, want kick ready and snare failed", states)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", c.Len())
	}
}
