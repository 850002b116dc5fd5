// ABOUTME: Ultra-low-latency playback engine triggering preloaded pads
// ABOUTME: Schedules layered voices on an audio backend and reports metrics
package chop

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio/output"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/latency"
	"github.com/google/uuid"
)

// Sentinel errors for trigger failures.
var (
	// ErrNotInitialized is returned when triggering before Initialize
	// or after Dispose.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrNotPreloaded is returned when triggering a pad with no Ready
	// sample.
	ErrNotPreloaded = errors.New("sample not preloaded")
)

// lowLatencyBuffer is the device buffer OptimizeForUltraLowLatency
// requests. Below roughly 5ms consumer devices start to underrun.
const lowLatencyBuffer = 5 * time.Millisecond

// Config holds engine configuration. Zero fields take defaults.
type Config struct {
	// SampleRate is the device rate (default 44100).
	SampleRate int

	// Channels is the device channel count (default 2).
	Channels int

	// BufferSize is the device buffer target (default 10ms).
	BufferSize time.Duration

	// MaxVoicesPerPad caps simultaneous voices on one pad. Zero keeps
	// layering unbounded; when set, the oldest voice on the pad is
	// stolen to make room.
	MaxVoicesPerPad int

	// Monitor, when set, receives a trigger-overhead sample per trigger.
	Monitor *latency.Monitor
}

// Chop defines one pad's region within a source buffer.
type Chop struct {
	PadID  string
	Start  time.Duration
	End    time.Duration
	Volume float64 // 0 keeps the pad's current volume
}

// TriggerOptions adjusts one trigger.
type TriggerOptions struct {
	// Volume overrides the pad's stored volume for this voice. Zero
	// keeps the stored volume.
	Volume float64
}

// TriggerResult reports a successful trigger.
type TriggerResult struct {
	// VoiceID identifies the spawned voice for later control.
	VoiceID string
	// Latency is the measured overhead from trigger call to backend
	// handoff.
	Latency time.Duration
}

// Metrics is a point-in-time engine summary.
type Metrics struct {
	AverageLatency   time.Duration
	MinLatency       time.Duration
	MaxLatency       time.Duration
	Triggers         int64
	Drops            int64
	ActiveVoices     int
	PreloadedSamples int
	BufferSize       time.Duration
	SampleRate       int
	Device           output.DeviceLatency
}

// Engine triggers preloaded pads on an audio backend with minimal
// per-trigger overhead. Every trigger spawns an independent voice;
// layering the same pad is the normal case, not an error.
type Engine struct {
	config  Config
	backend output.Backend
	cache   *PreloadCache
	monitor *latency.Monitor

	mu          sync.Mutex
	voices      map[string]*Voice
	padVoices   map[string][]string
	initialized bool

	triggers int64
	drops    int64
	latSum   time.Duration
	latMin   time.Duration
	latMax   time.Duration
}

// New creates an engine on the given backend. A nil cache gets a fresh
// one targeting the engine's sample rate.
func New(backend output.Backend, cache *PreloadCache, config Config) *Engine {
	if config.SampleRate <= 0 {
		config.SampleRate = 44100
	}
	if config.Channels <= 0 {
		config.Channels = 2
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 10 * time.Millisecond
	}
	if cache == nil {
		cache = NewPreloadCache(config.SampleRate)
	}

	return &Engine{
		config:    config,
		backend:   backend,
		cache:     cache,
		monitor:   config.Monitor,
		voices:    make(map[string]*Voice),
		padVoices: make(map[string][]string),
	}
}

// Cache returns the engine's preload cache.
func (e *Engine) Cache() *PreloadCache {
	return e.cache
}

// Initialize opens the audio backend. Idempotent after success.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	cfg := output.Config{
		SampleRate: e.config.SampleRate,
		Channels:   e.config.Channels,
		BufferSize: e.config.BufferSize,
	}
	if err := e.backend.Open(cfg); err != nil {
		return fmt.Errorf("failed to open audio backend: %w", err)
	}

	e.initialized = true
	device := e.backend.Latency()
	log.Printf("Playback engine initialized: %dHz, %d channels, %v buffer, device latency %v",
		cfg.SampleRate, cfg.Channels, cfg.BufferSize, device.Total())

	return nil
}

// OptimizeForUltraLowLatency requests the smallest practical device
// buffer. Best effort: backends that cannot retune keep their buffer and
// the engine carries on.
func (e *Engine) OptimizeForUltraLowLatency() error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	current := e.config.BufferSize
	e.mu.Unlock()

	if current <= lowLatencyBuffer {
		return nil
	}

	if err := e.backend.Retune(lowLatencyBuffer); err != nil {
		log.Printf("Low-latency retune unavailable: %v", err)
		return fmt.Errorf("failed to retune device: %w", err)
	}

	e.mu.Lock()
	e.config.BufferSize = lowLatencyBuffer
	e.mu.Unlock()

	if e.monitor != nil {
		e.monitor.MarkBufferSizeReduced()
	}
	log.Printf("Device buffer reduced to %v for ultra-low-latency triggering", lowLatencyBuffer)
	return nil
}

// Trigger plays the pad's preloaded sample as a new voice. velocity
// scales the pad volume; values <= 0 mean full velocity. The returned
// latency is the measured call-to-handoff overhead.
func (e *Engine) Trigger(padID string, velocity float64, opts TriggerOptions) (TriggerResult, error) {
	start := time.Now()

	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return TriggerResult{}, ErrNotInitialized
	}
	maxVoices := e.config.MaxVoicesPerPad
	e.mu.Unlock()

	sample, ok := e.cache.Get(padID)
	if !ok || sample.State != StateReady {
		return TriggerResult{}, fmt.Errorf("pad %q: %w", padID, ErrNotPreloaded)
	}

	if velocity <= 0 {
		velocity = 1.0
	}
	volume := opts.Volume
	if volume <= 0 {
		volume = sample.Volume
	}
	gain := volume * velocity

	if maxVoices > 0 {
		e.stealOldest(padID, maxVoices)
	}

	voiceID := uuid.New().String()
	voice := &Voice{
		ID:        voiceID,
		PadID:     padID,
		Gain:      gain,
		StartedAt: start,
		State:     VoicePlaying,
	}

	// Register before scheduling: a short region can complete (and fire
	// done) inside Schedule itself.
	e.mu.Lock()
	e.voices[voiceID] = voice
	e.padVoices[padID] = append(e.padVoices[padID], voiceID)
	e.mu.Unlock()

	handle, err := e.backend.Schedule(sample.Region, start, gain, func() {
		e.removeVoice(voiceID)
	})
	if err != nil {
		e.removeVoice(voiceID)
		e.mu.Lock()
		e.drops++
		e.mu.Unlock()
		return TriggerResult{}, fmt.Errorf("failed to schedule voice for pad %q: %w", padID, err)
	}

	elapsed := time.Since(start)

	e.mu.Lock()
	if v, ok := e.voices[voiceID]; ok {
		v.handle = handle
	}
	e.recordTriggerLocked(elapsed)
	e.mu.Unlock()

	if e.monitor != nil {
		e.monitor.RecordAudioTrigger(start, start.Add(elapsed))
	}

	return TriggerResult{VoiceID: voiceID, Latency: elapsed}, nil
}

// stealOldest silences the oldest voices on a pad until one slot is free.
func (e *Engine) stealOldest(padID string, maxVoices int) {
	for {
		e.mu.Lock()
		ids := e.padVoices[padID]
		if len(ids) < maxVoices {
			e.mu.Unlock()
			return
		}
		id := ids[0]
		oldest := e.voices[id]
		if oldest == nil || oldest.handle == nil {
			// A voice mid-schedule has no handle yet; drop its slot and
			// let its own done callback settle the rest.
			e.padVoices[padID] = ids[1:]
			if len(e.padVoices[padID]) == 0 {
				delete(e.padVoices, padID)
			}
			if oldest != nil {
				delete(e.voices, id)
				oldest.State = VoiceStopped
			}
			e.mu.Unlock()
			continue
		}
		e.mu.Unlock()

		// Stop fires the done callback, which removes the voice.
		oldest.handle.Stop()
	}
}

// StopVoice silences one voice by ID. Unknown IDs are a no-op.
func (e *Engine) StopVoice(voiceID string) {
	e.mu.Lock()
	v, ok := e.voices[voiceID]
	e.mu.Unlock()

	if !ok || v.handle == nil {
		e.removeVoice(voiceID)
		return
	}
	v.handle.Stop()
}

// StopAll silences every active voice immediately.
func (e *Engine) StopAll() {
	e.mu.Lock()
	handles := make([]output.VoiceHandle, 0, len(e.voices))
	for _, v := range e.voices {
		v.State = VoiceStopped
		if v.handle != nil {
			handles = append(handles, v.handle)
		}
	}
	e.voices = make(map[string]*Voice)
	e.padVoices = make(map[string][]string)
	e.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}

	if len(handles) > 0 {
		log.Printf("Stopped %d voices", len(handles))
	}
}

// removeVoice drops a finished voice's bookkeeping. Idempotent: natural
// completion, stealing, StopAll, and schedule failure may all race here.
func (e *Engine) removeVoice(voiceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.voices[voiceID]
	if !ok {
		return
	}
	delete(e.voices, voiceID)
	v.State = VoiceStopped

	ids := e.padVoices[v.PadID]
	for i, id := range ids {
		if id == voiceID {
			e.padVoices[v.PadID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(e.padVoices[v.PadID]) == 0 {
		delete(e.padVoices, v.PadID)
	}
}

func (e *Engine) recordTriggerLocked(d time.Duration) {
	e.triggers++
	e.latSum += d
	if e.triggers == 1 || d < e.latMin {
		e.latMin = d
	}
	if d > e.latMax {
		e.latMax = d
	}
}

// ActiveVoices returns the number of voices currently playing.
func (e *Engine) ActiveVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

// Metrics summarizes trigger performance and engine state.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	m := Metrics{
		MinLatency:   e.latMin,
		MaxLatency:   e.latMax,
		Triggers:     e.triggers,
		Drops:        e.drops,
		ActiveVoices: len(e.voices),
		BufferSize:   e.config.BufferSize,
		SampleRate:   e.config.SampleRate,
	}
	if e.triggers > 0 {
		m.AverageLatency = e.latSum / time.Duration(e.triggers)
	}
	initialized := e.initialized
	e.mu.Unlock()

	m.PreloadedSamples = e.cache.ReadyCount()
	if initialized {
		m.Device = e.backend.Latency()
	}
	return m
}

// PreloadAll prepares every chop concurrently. Pads without a usable
// entry show Pending while work is in flight and Failed with the cause
// when their bounds are invalid. Returns the first failure, with the
// failed pad count.
func (e *Engine) PreloadAll(src *audio.SourceBuffer, chops []Chop) error {
	if len(chops) == 0 {
		return nil
	}

	for _, ch := range chops {
		if ch.PadID != "" {
			e.cache.markPending(ch.PadID)
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(chops))

	for _, ch := range chops {
		wg.Add(1)
		go func(ch Chop) {
			defer wg.Done()
			if err := e.cache.Preload(ch.PadID, src, ch.Start, ch.End); err != nil {
				e.cache.markFailed(ch.PadID, err)
				errCh <- err
				return
			}
			if ch.Volume > 0 {
				e.cache.SetVolume(ch.PadID, ch.Volume)
			}
		}(ch)
	}

	wg.Wait()
	close(errCh)

	var first error
	failed := 0
	for err := range errCh {
		if first == nil {
			first = err
		}
		failed++
	}
	if first != nil {
		return fmt.Errorf("%d of %d pads failed to preload: %w", failed, len(chops), first)
	}

	log.Printf("Preloaded %d pads", len(chops))
	return nil
}

// LatencyProbe returns a probe for the latency monitor that samples the
// device's output path delay.
func (e *Engine) LatencyProbe() latency.ProbeFunc {
	return func() (time.Duration, error) {
		e.mu.Lock()
		initialized := e.initialized
		e.mu.Unlock()

		if !initialized {
			return 0, ErrNotInitialized
		}
		return e.backend.Latency().Total(), nil
	}
}

// Dispose stops every voice and releases the backend. Safe to call more
// than once; Initialize may be called again afterwards.
func (e *Engine) Dispose() error {
	e.StopAll()

	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return nil
	}
	e.initialized = false
	e.mu.Unlock()

	if err := e.backend.Close(); err != nil {
		return fmt.Errorf("failed to close audio backend: %w", err)
	}

	log.Printf("Playback engine disposed")
	return nil
}
