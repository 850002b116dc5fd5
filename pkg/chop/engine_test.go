// ABOUTME: Tests for the playback engine
// ABOUTME: Drives triggering, layering, voice stealing, and metrics on a simulated backend
package chop

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio/output"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/latency"
)

// newTestEngine builds an initialized engine on a simulated backend.
func newTestEngine(t *testing.T, cfg Config) (*Engine, *output.Sim) {
	t.Helper()
	sim := output.NewSim(output.DeviceLatency{
		Base:   2 * time.Millisecond,
		Output: 10 * time.Millisecond,
	})
	e := New(sim, nil, cfg)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { e.Dispose() })
	return e, sim
}

func preloadPad(t *testing.T, e *Engine, pad string) {
	t.Helper()
	src := testSource(44100, time.Second)
	if err := e.Cache().Preload(pad, src, 0, 100*time.Millisecond); err != nil {
		t.Fatalf("Preload %s failed: %v", pad, err)
	}
}

func TestTriggerBeforeInitialize(t *testing.T) {
	e := New(output.NewSim(output.DeviceLatency{}), nil, Config{})
	if _, err := e.Trigger("kick", 1.0, TriggerOptions{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Trigger = %v, want ErrNotInitialized", err)
	}
}

func TestTriggerRequiresReadySample(t *testing.T) {
	e, _ := newTestEngine(t, Config{})

	if _, err := e.Trigger("missing", 1.0, TriggerOptions{}); !errors.Is(err, ErrNotPreloaded) {
		t.Fatalf("Trigger on unknown pad = %v, want ErrNotPreloaded", err)
	}

	e.Cache().markPending("loading")
	if _, err := e.Trigger("loading", 1.0, TriggerOptions{}); !errors.Is(err, ErrNotPreloaded) {
		t.Fatalf("Trigger on pending pad = %v, want ErrNotPreloaded", err)
	}
}

func TestTriggerSpawnsVoice(t *testing.T) {
	e, sim := newTestEngine(t, Config{})
	preloadPad(t, e, "kick")

	res, err := e.Trigger("kick", 1.0, TriggerOptions{})
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if res.VoiceID == "" {
		t.Error("empty voice ID")
	}
	if res.Latency < 0 {
		t.Errorf("negative trigger latency %v", res.Latency)
	}
	if e.ActiveVoices() != 1 {
		t.Errorf("ActiveVoices = %d, want 1", e.ActiveVoices())
	}
	if sim.ActiveVoices() != 1 {
		t.Errorf("backend ActiveVoices = %d, want 1", sim.ActiveVoices())
	}

	sim.CompleteAll()
	if e.ActiveVoices() != 0 {
		t.Errorf("ActiveVoices = %d after playback completed, want 0", e.ActiveVoices())
	}
}

func TestTriggerGain(t *testing.T) {
	tests := []struct {
		name     string
		padVol   float64
		velocity float64
		optVol   float64
		want     float64
	}{
		{"full velocity", 0, 1.0, 0, 1.0},
		{"half velocity", 0, 0.5, 0, 0.5},
		{"zero velocity plays full", 0, 0, 0, 1.0},
		{"negative velocity plays full", 0, -3, 0, 1.0},
		{"pad volume scales", 0.5, 0.8, 0, 0.4},
		{"option volume overrides pad", 0.5, 1.0, 0.25, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, sim := newTestEngine(t, Config{})
			preloadPad(t, e, "kick")
			if tt.padVol > 0 {
				e.Cache().SetVolume("kick", tt.padVol)
			}

			if _, err := e.Trigger("kick", tt.velocity, TriggerOptions{Volume: tt.optVol}); err != nil {
				t.Fatalf("Trigger failed: %v", err)
			}

			voices := sim.Voices()
			if len(voices) != 1 {
				t.Fatalf("backend holds %d voices, want 1", len(voices))
			}
			if got := voices[0].Gain; math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("gain = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLayeringIsUnbounded(t *testing.T) {
	e, sim := newTestEngine(t, Config{})
	preloadPad(t, e, "kick")

	for i := 0; i < 8; i++ {
		if _, err := e.Trigger("kick", 1.0, TriggerOptions{}); err != nil {
			t.Fatalf("Trigger %d failed: %v", i, err)
		}
	}
	if e.ActiveVoices() != 8 {
		t.Errorf("ActiveVoices = %d, want 8", e.ActiveVoices())
	}
	if sim.Scheduled() != 8 {
		t.Errorf("Scheduled = %d, want 8", sim.Scheduled())
	}
}

func TestMaxVoicesPerPadStealsOldest(t *testing.T) {
	e, sim := newTestEngine(t, Config{MaxVoicesPerPad: 2})
	preloadPad(t, e, "kick")

	first, err := e.Trigger("kick", 1.0, TriggerOptions{})
	if err != nil {
		t.Fatalf("first Trigger failed: %v", err)
	}
	second, err := e.Trigger("kick", 1.0, TriggerOptions{})
	if err != nil {
		t.Fatalf("second Trigger failed: %v", err)
	}
	third, err := e.Trigger("kick", 1.0, TriggerOptions{})
	if err != nil {
		t.Fatalf("third Trigger failed: %v", err)
	}

	if e.ActiveVoices() != 2 {
		t.Errorf("ActiveVoices = %d, want 2 with a cap of 2", e.ActiveVoices())
	}
	if sim.Scheduled() != 3 {
		t.Errorf("Scheduled = %d, want 3: stealing never blocks a trigger", sim.Scheduled())
	}

	e.mu.Lock()
	_, firstAlive := e.voices[first.VoiceID]
	_, secondAlive := e.voices[second.VoiceID]
	_, thirdAlive := e.voices[third.VoiceID]
	e.mu.Unlock()
	if firstAlive {
		t.Error("oldest voice still playing after steal")
	}
	if !secondAlive || !thirdAlive {
		t.Error("a newer voice was stolen instead of the oldest")
	}
}

func TestVoiceCapIsPerPad(t *testing.T) {
	e, _ := newTestEngine(t, Config{MaxVoicesPerPad: 1})
	preloadPad(t, e, "kick")
	preloadPad(t, e, "snare")

	if _, err := e.Trigger("kick", 1.0, TriggerOptions{}); err != nil {
		t.Fatalf("Trigger kick failed: %v", err)
	}
	if _, err := e.Trigger("snare", 1.0, TriggerOptions{}); err != nil {
		t.Fatalf("Trigger snare failed: %v", err)
	}
	if e.ActiveVoices() != 2 {
		t.Errorf("ActiveVoices = %d, want one voice per pad", e.ActiveVoices())
	}

	if _, err := e.Trigger("kick", 1.0, TriggerOptions{}); err != nil {
		t.Fatalf("kick retrigger failed: %v", err)
	}
	if e.ActiveVoices() != 2 {
		t.Errorf("ActiveVoices = %d after kick retrigger, want 2", e.ActiveVoices())
	}
}

func TestStopVoice(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	preloadPad(t, e, "kick")

	res, err := e.Trigger("kick", 1.0, TriggerOptions{})
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	e.StopVoice(res.VoiceID)
	if e.ActiveVoices() != 0 {
		t.Errorf("ActiveVoices = %d after StopVoice, want 0", e.ActiveVoices())
	}

	// Repeats and unknown IDs are no-ops.
	e.StopVoice(res.VoiceID)
	e.StopVoice("no-such-voice")
}

func TestStopAll(t *testing.T) {
	e, sim := newTestEngine(t, Config{})
	preloadPad(t, e, "kick")
	preloadPad(t, e, "snare")

	for _, pad := range []string{"kick", "kick", "snare"} {
		if _, err := e.Trigger(pad, 1.0, TriggerOptions{}); err != nil {
			t.Fatalf("Trigger %s failed: %v", pad, err)
		}
	}

	e.StopAll()
	if e.ActiveVoices() != 0 {
		t.Errorf("ActiveVoices = %d after StopAll, want 0", e.ActiveVoices())
	}
	if sim.ActiveVoices() != 0 {
		t.Errorf("backend ActiveVoices = %d after StopAll, want 0", sim.ActiveVoices())
	}

	// Nothing playing: still fine.
	e.StopAll()
}

func TestScheduleFailureCountsDrop(t *testing.T) {
	e, sim := newTestEngine(t, Config{})
	preloadPad(t, e, "kick")

	// Device vanishes under the engine.
	sim.Close()

	_, err := e.Trigger("kick", 1.0, TriggerOptions{})
	if err == nil {
		t.Fatal("Trigger succeeded on a closed device")
	}
	if !errors.Is(err, output.ErrNotOpen) {
		t.Errorf("err = %v, want ErrNotOpen in the chain", err)
	}
	if got := e.Metrics().Drops; got != 1 {
		t.Errorf("Drops = %d, want 1", got)
	}
	if e.ActiveVoices() != 0 {
		t.Errorf("ActiveVoices = %d after failed schedule, want 0", e.ActiveVoices())
	}
}

func TestMetrics(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	preloadPad(t, e, "kick")
	preloadPad(t, e, "snare")

	for i := 0; i < 3; i++ {
		if _, err := e.Trigger("kick", 1.0, TriggerOptions{}); err != nil {
			t.Fatalf("Trigger failed: %v", err)
		}
	}
	if _, err := e.Trigger("missing", 1.0, TriggerOptions{}); err == nil {
		t.Fatal("Trigger on unknown pad succeeded")
	}

	m := e.Metrics()
	if m.Triggers != 3 {
		t.Errorf("Triggers = %d, want 3", m.Triggers)
	}
	if m.Drops != 0 {
		t.Errorf("Drops = %d, want 0: rejected triggers never reach the backend", m.Drops)
	}
	if m.ActiveVoices != 3 {
		t.Errorf("ActiveVoices = %d, want 3", m.ActiveVoices)
	}
	if m.PreloadedSamples != 2 {
		t.Errorf("PreloadedSamples = %d, want 2", m.PreloadedSamples)
	}
	if m.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want the 44100 default", m.SampleRate)
	}
	if m.BufferSize != 10*time.Millisecond {
		t.Errorf("BufferSize = %v, want the 10ms default", m.BufferSize)
	}
	if m.AverageLatency < 0 || m.MinLatency < 0 || m.MaxLatency < m.MinLatency {
		t.Errorf("inconsistent latency summary: avg %v min %v max %v",
			m.AverageLatency, m.MinLatency, m.MaxLatency)
	}
	if m.Device.Total() != 12*time.Millisecond {
		t.Errorf("Device.Total = %v, want 12ms", m.Device.Total())
	}
}

func TestOptimizeForUltraLowLatency(t *testing.T) {
	e, sim := newTestEngine(t, Config{BufferSize: 10 * time.Millisecond})

	if err := e.OptimizeForUltraLowLatency(); err != nil {
		t.Fatalf("OptimizeForUltraLowLatency failed: %v", err)
	}
	retunes := sim.Retunes()
	if len(retunes) != 1 || retunes[0] != 5*time.Millisecond {
		t.Errorf("Retunes = %v, want one 5ms request", retunes)
	}
	if got := e.Metrics().BufferSize; got != 5*time.Millisecond {
		t.Errorf("BufferSize = %v, want 5ms", got)
	}

	// Already at the floor: no further retune.
	if err := e.OptimizeForUltraLowLatency(); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if got := len(sim.Retunes()); got != 1 {
		t.Errorf("%d retunes after second call, want 1", got)
	}
}

func TestOptimizeRequiresInitialize(t *testing.T) {
	e := New(output.NewSim(output.DeviceLatency{}), nil, Config{})
	if err := e.OptimizeForUltraLowLatency(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("err = %v, want ErrNotInitialized", err)
	}
}

// retuneFailBackend simulates a device whose buffer cannot shrink.
type retuneFailBackend struct {
	*output.Sim
}

func (b retuneFailBackend) Retune(time.Duration) error {
	return output.ErrRetuneUnsupported
}

func TestOptimizeRetuneFailure(t *testing.T) {
	e := New(retuneFailBackend{output.NewSim(output.DeviceLatency{})}, nil, Config{})
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if err := e.OptimizeForUltraLowLatency(); !errors.Is(err, output.ErrRetuneUnsupported) {
		t.Fatalf("err = %v, want ErrRetuneUnsupported", err)
	}
	if got := e.Metrics().BufferSize; got != 10*time.Millisecond {
		t.Errorf("BufferSize = %v after failed retune, want the 10ms default", got)
	}
}

func TestOptimizeMarksMonitorFlag(t *testing.T) {
	mon := latency.NewMonitor(latency.Config{})
	e, _ := newTestEngine(t, Config{Monitor: mon})

	if err := e.OptimizeForUltraLowLatency(); err != nil {
		t.Fatalf("OptimizeForUltraLowLatency failed: %v", err)
	}
	if !mon.Flags().BufferSizeReduced {
		t.Error("BufferSizeReduced flag not set after retune")
	}
}

func TestTriggerFeedsMonitor(t *testing.T) {
	mon := latency.NewMonitor(latency.Config{})
	e, _ := newTestEngine(t, Config{Monitor: mon})
	preloadPad(t, e, "kick")

	if _, err := e.Trigger("kick", 1.0, TriggerOptions{}); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if got := mon.CategoryStats(latency.CategoryAudioTrigger).Count; got != 1 {
		t.Errorf("audioTrigger count = %d, want 1", got)
	}
}

func TestInitializeTwice(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	if err := e.Initialize(); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}
}

func TestDisposeAndReinitialize(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	preloadPad(t, e, "kick")
	if _, err := e.Trigger("kick", 1.0, TriggerOptions{}); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	if err := e.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
	if e.ActiveVoices() != 0 {
		t.Errorf("ActiveVoices = %d after Dispose, want 0", e.ActiveVoices())
	}
	if _, err := e.Trigger("kick", 1.0, TriggerOptions{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Trigger after Dispose = %v, want ErrNotInitialized", err)
	}
	if err := e.Dispose(); err != nil {
		t.Fatalf("second Dispose failed: %v", err)
	}

	if err := e.Initialize(); err != nil {
		t.Fatalf("re-Initialize failed: %v", err)
	}
	if _, err := e.Trigger("kick", 1.0, TriggerOptions{}); err != nil {
		t.Fatalf("Trigger after re-Initialize failed: %v", err)
	}
}

func TestRepreloadWhilePlaying(t *testing.T) {
	e, sim := newTestEngine(t, Config{})
	src := testSource(44100, time.Second)

	if err := e.Cache().Preload("kick", src, 0, 100*time.Millisecond); err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	if _, err := e.Trigger("kick", 1.0, TriggerOptions{}); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	// Replace the region mid-playback; the playing voice is untouched.
	if err := e.Cache().Preload("kick", src, 0, 200*time.Millisecond); err != nil {
		t.Fatalf("re-Preload failed: %v", err)
	}
	if _, err := e.Trigger("kick", 1.0, TriggerOptions{}); err != nil {
		t.Fatalf("second Trigger failed: %v", err)
	}

	if e.ActiveVoices() != 2 {
		t.Fatalf("ActiveVoices = %d, want 2", e.ActiveVoices())
	}
	frames := make(map[int]bool)
	for _, v := range sim.Voices() {
		frames[v.Region.Frames()] = true
	}
	if !frames[4410] || !frames[8820] {
		t.Errorf("voice frame counts = %v, want both the old and new regions playing", frames)
	}
}

func TestPreloadAll(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	src := testSource(44100, time.Second)

	if err := e.PreloadAll(src, nil); err != nil {
		t.Fatalf("PreloadAll with no chops = %v, want nil", err)
	}

	chops := []Chop{
		{PadID: "kick", Start: 0, End: 100 * time.Millisecond},
		{PadID: "snare", Start: 100 * time.Millisecond, End: 300 * time.Millisecond, Volume: 0.5},
		{PadID: "hat", Start: 900 * time.Millisecond, End: time.Second},
	}
	if err := e.PreloadAll(src, chops); err != nil {
		t.Fatalf("PreloadAll failed: %v", err)
	}
	if got := e.Cache().ReadyCount(); got != 3 {
		t.Errorf("ReadyCount = %d, want 3", got)
	}
	s, _ := e.Cache().Get("snare")
	if s.Volume != 0.5 {
		t.Errorf("snare volume = %v, want 0.5", s.Volume)
	}
}

func TestPreloadAllReportsFailures(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	src := testSource(44100, time.Second)

	chops := []Chop{
		{PadID: "kick", Start: 0, End: 100 * time.Millisecond},
		{PadID: "broken", Start: 500 * time.Millisecond, End: 2 * time.Second},
	}
	err := e.PreloadAll(src, chops)
	if !errors.Is(err, ErrInvalidRegion) {
		t.Fatalf("PreloadAll = %v, want ErrInvalidRegion", err)
	}

	states := e.Cache().States()
	if states["kick"] != StateReady {
		t.Errorf("kick state = %q, want ready", states["kick"])
	}
	if states["broken"] != StateFailed {
		t.Errorf("broken state = %q, want failed", states["broken"])
	}
	if s, _ := e.Cache().Get("broken"); s.Err == nil {
		t.Error("failed pad carries no error")
	}
}

func TestLatencyProbe(t *testing.T) {
	sim := output.NewSim(output.DeviceLatency{
		Base:   2 * time.Millisecond,
		Output: 10 * time.Millisecond,
	})
	e := New(sim, nil, Config{})
	probe := e.LatencyProbe()

	if _, err := probe(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("probe before Initialize = %v, want ErrNotInitialized", err)
	}

	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	d, err := probe()
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if d != 12*time.Millisecond {
		t.Errorf("probe = %v, want 12ms", d)
	}
}
