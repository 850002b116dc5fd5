// ABOUTME: Latency monitoring package for the trigger pipeline
// ABOUTME: Provides Monitor, rating policy, and adaptive optimization rules
// Package latency measures and grades the sample trigger pipeline.
//
// A Monitor keeps rolling windows of four pipeline stages:
//   - keyPress: input arrival to trigger call
//   - audioTrigger: trigger call to backend handoff
//   - bufferLatency: device buffer delay
//   - totalLatency: input arrival to audible output
//
// Each window is rated against a single policy table, and subscribers
// receive periodic status, recommendation, and optimization events. The
// adaptive rules fire one-shot tuning actions (enable preloading, retune
// the device) when averages cross their thresholds.
//
// Example:
//
//	mon := latency.NewMonitor(latency.Config{Probe: engine.LatencyProbe()})
//	unsubscribe := mon.Subscribe(func(e latency.Event) {
//	    if e.Type == latency.EventOptimization {
//	        log.Printf("tuning: %s", e.Action)
//	    }
//	})
//	mon.StartMonitoring(time.Second)
//	defer mon.Dispose()
//	defer unsubscribe()
package latency
