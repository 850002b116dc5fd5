// ABOUTME: Core sample triggering library
// ABOUTME: Provides the preload cache and the low-latency playback engine
// Package chop provides ultra-low-latency sample triggering for pad
// controllers.
//
// Audio is sliced into time regions ("chops"), each bound to a pad ID
// and preloaded into a PreloadCache as ready-to-play sample data. An
// Engine triggers pads on an audio backend with single-digit-millisecond
// scheduling overhead:
//   - PreloadCache: per-pad prepared regions, last-write-wins replacement
//   - Engine: trigger, layer, and stop voices; report metrics
//   - Voice: one playing instance of a pad's sample
//
// Example:
//
//	engine := chop.New(output.NewOto(), nil, chop.Config{})
//	err := engine.Initialize()
//	err = engine.Cache().Preload("kick", buf, 0, 250*time.Millisecond)
//	result, err := engine.Trigger("kick", 1.0, chop.TriggerOptions{})
//	defer engine.Dispose()
package chop
