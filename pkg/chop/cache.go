// ABOUTME: Sample preload cache keyed by pad
// ABOUTME: Holds ready-to-play regions with last-write-wins replacement
package chop

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio/resample"
)

// ErrInvalidRegion is returned when a chop's bounds do not fit its
// source buffer. The cache is left untouched.
var ErrInvalidRegion = errors.New("invalid sample region")

// SampleState tracks a cache entry's lifecycle.
type SampleState string

const (
	// StatePending marks a pad whose sample is being prepared.
	StatePending SampleState = "pending"
	// StateReady marks a pad that can be triggered.
	StateReady SampleState = "ready"
	// StateFailed marks a pad whose preparation failed.
	StateFailed SampleState = "failed"
	// StateStale marks an entry superseded by a newer preload or an
	// invalidation, just before it is dropped.
	StateStale SampleState = "stale"
)

// PreloadedSample is one pad's ready-to-play audio.
type PreloadedSample struct {
	PadID    string
	Region   audio.Region
	Volume   float64
	State    SampleState
	Err      error
	LoadedAt time.Time
}

// PreloadCache holds prepared sample regions keyed by pad ID. Replacement
// is last-write-wins by completion order: a re-preloaded pad keeps
// serving its previous Ready sample until the new one lands, at which
// point the old entry is marked Stale. The cache has no capacity bound;
// eviction is the caller's concern via Invalidate and Clear.
type PreloadCache struct {
	mu         sync.RWMutex
	samples    map[string]*PreloadedSample
	targetRate int
}

// NewPreloadCache creates a cache. When targetRate is positive, preloaded
// regions are resampled to it so every entry matches the playback device.
func NewPreloadCache(targetRate int) *PreloadCache {
	return &PreloadCache{
		samples:    make(map[string]*PreloadedSample),
		targetRate: targetRate,
	}
}

// Preload cuts [start, end) from src and installs it for the pad. Bounds
// must satisfy 0 <= start < end <= src.Duration(); on any validation
// failure the cache keeps its previous state for the pad.
func (c *PreloadCache) Preload(padID string, src *audio.SourceBuffer, start, end time.Duration) error {
	if padID == "" {
		return fmt.Errorf("empty pad id")
	}
	if src == nil {
		return fmt.Errorf("nil source buffer for pad %q", padID)
	}

	region, err := src.Slice(start, end)
	if err != nil {
		return fmt.Errorf("%w for pad %q: %v", ErrInvalidRegion, padID, err)
	}

	if c.targetRate > 0 && region.SampleRate != c.targetRate {
		r, err := resample.New(region.SampleRate, c.targetRate)
		if err != nil {
			return fmt.Errorf("cannot resample pad %q: %w", padID, err)
		}
		region = audio.Region{Channels: r.Resample(region.Channels), SampleRate: c.targetRate}
	}

	c.mu.Lock()
	volume := 1.0
	if prev, ok := c.samples[padID]; ok {
		volume = prev.Volume
		prev.State = StateStale
	}
	c.samples[padID] = &PreloadedSample{
		PadID:    padID,
		Region:   region,
		Volume:   volume,
		State:    StateReady,
		LoadedAt: time.Now(),
	}
	c.mu.Unlock()

	log.Printf("Preloaded pad %s: %v region, %d frames at %dHz",
		padID, region.Duration().Round(time.Millisecond), region.Frames(), region.SampleRate)

	return nil
}

// Get returns a snapshot of the pad's entry. The region's sample data is
// shared and immutable; only Ready entries are playable.
func (c *PreloadCache) Get(padID string) (PreloadedSample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.samples[padID]
	if !ok {
		return PreloadedSample{}, false
	}
	return *s, true
}

// Invalidate drops the pad's entry.
func (c *PreloadCache) Invalidate(padID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.samples[padID]
	if !ok {
		return false
	}
	s.State = StateStale
	delete(c.samples, padID)
	return true
}

// SetVolume adjusts the pad's playback volume, clamped to [0, 1].
// Returns false when the pad has no entry.
func (c *PreloadCache) SetVolume(padID string, volume float64) bool {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.samples[padID]
	if !ok {
		return false
	}
	s.Volume = volume
	return true
}

// Len returns the number of entries, whatever their state.
func (c *PreloadCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

// ReadyCount returns the number of triggerable entries.
func (c *PreloadCache) ReadyCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, s := range c.samples {
		if s.State == StateReady {
			n++
		}
	}
	return n
}

// States returns each pad's current state.
func (c *PreloadCache) States() map[string]SampleState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]SampleState, len(c.samples))
	for pad, s := range c.samples {
		out[pad] = s.State
	}
	return out
}

// Clear drops every entry.
func (c *PreloadCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.samples {
		s.State = StateStale
	}
	c.samples = make(map[string]*PreloadedSample)
}

// markPending installs a Pending marker for a pad with no usable entry.
// A Ready entry keeps serving; preparation must not shadow it.
func (c *PreloadCache) markPending(padID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.samples[padID]; ok && s.State == StateReady {
		return
	}
	c.samples[padID] = &PreloadedSample{
		PadID:    padID,
		Volume:   1.0,
		State:    StatePending,
		LoadedAt: time.Now(),
	}
}

// markFailed records a preparation failure, without clobbering a Ready
// entry that is still serving.
func (c *PreloadCache) markFailed(padID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.samples[padID]; ok && s.State == StateReady {
		return
	}
	c.samples[padID] = &PreloadedSample{
		PadID:    padID,
		Volume:   1.0,
		State:    StateFailed,
		Err:      err,
		LoadedAt: time.Now(),
	}
}
