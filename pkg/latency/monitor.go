// ABOUTME: Latency monitor with rolling per-category measurement windows
// ABOUTME: Rates pipeline stages, notifies subscribers, and drives adaptive tuning
package latency

import (
	"log"
	"sync"
	"time"
)

// Category identifies one measured pipeline stage.
type Category string

const (
	// CategoryKeyPress is input arrival to trigger call.
	CategoryKeyPress Category = "keyPress"
	// CategoryAudioTrigger is trigger call to backend handoff.
	CategoryAudioTrigger Category = "audioTrigger"
	// CategoryBuffer is the device buffer delay.
	CategoryBuffer Category = "bufferLatency"
	// CategoryTotal is input arrival to audible output.
	CategoryTotal Category = "totalLatency"
)

// Categories lists every measured stage in display order.
func Categories() []Category {
	return []Category{CategoryKeyPress, CategoryAudioTrigger, CategoryBuffer, CategoryTotal}
}

// DefaultHistorySize is the per-category ring capacity.
const DefaultHistorySize = 100

// DefaultInterval is the monitoring cadence when none is given.
const DefaultInterval = time.Second

// ProbeFunc samples the current device buffer delay. Called once per
// monitoring tick.
type ProbeFunc func() (time.Duration, error)

// Stats summarizes one category's rolling window.
type Stats struct {
	AverageMs float64 `json:"averageMs"`
	MinMs     float64 `json:"minMs"`
	MaxMs     float64 `json:"maxMs"`
	Count     int     `json:"count"`
	Rating    Rating  `json:"rating"`
}

// PerformanceStatus is one assessment of the whole pipeline.
type PerformanceStatus struct {
	Categories      map[Category]Stats `json:"categories"`
	Overall         Rating             `json:"overall"`
	Recommendations []string           `json:"recommendations,omitempty"`
	At              time.Time          `json:"at"`
}

// EventType tags monitor notifications.
type EventType string

const (
	// EventStatus carries a fresh PerformanceStatus each tick.
	EventStatus EventType = "status"
	// EventSuggestions carries recommendations when totals degrade.
	EventSuggestions EventType = "suggestions"
	// EventOptimization carries one fired adaptive action.
	EventOptimization EventType = "optimization"
)

// Event is one monitor notification.
type Event struct {
	Type        EventType          `json:"type"`
	Status      *PerformanceStatus `json:"status,omitempty"`
	Suggestions []string           `json:"suggestions,omitempty"`
	Action      Action             `json:"action,omitempty"`
}

// Snapshot is an exportable copy of the monitor's state.
type Snapshot struct {
	At           time.Time                          `json:"at"`
	Measurements map[Category][]SnapshotMeasurement `json:"measurements"`
	Analysis     map[Category]Stats                 `json:"analysis"`
	Flags        OptimizationFlags                  `json:"optimizationFlags"`
}

// SnapshotMeasurement is one exported sample.
type SnapshotMeasurement struct {
	Ms float64   `json:"ms"`
	At time.Time `json:"at"`
}

// Config configures a Monitor. The zero value is usable.
type Config struct {
	// Probe samples the device buffer delay each tick. Optional.
	Probe ProbeFunc
	// Rules overrides the adaptive tuning policy. Nil selects
	// DefaultRules; an empty non-nil slice disables tuning.
	Rules []Rule
	// HistorySize is the per-category ring capacity. Zero selects
	// DefaultHistorySize.
	HistorySize int
}

// Monitor measures the trigger pipeline in rolling windows, grades each
// stage, and notifies subscribers of status changes and adaptive tuning
// actions.
type Monitor struct {
	mu         sync.Mutex
	rings      map[Category]*ring
	subs       map[int]func(Event)
	nextSubID  int
	flags      OptimizationFlags
	rules      []Rule
	probe      ProbeFunc
	probeWarn  bool
	monitoring bool
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewMonitor creates a monitor. No goroutines run until StartMonitoring.
func NewMonitor(cfg Config) *Monitor {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}

	rings := make(map[Category]*ring, len(Categories()))
	for _, c := range Categories() {
		rings[c] = newRing(cfg.HistorySize)
	}

	return &Monitor{
		rings: rings,
		subs:  make(map[int]func(Event)),
		rules: rules,
		probe: cfg.Probe,
	}
}

// Record adds one sample to a category's window. Unknown categories are
// dropped. Negative durations clamp to zero.
func (m *Monitor) Record(c Category, d time.Duration) {
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rings[c]
	if !ok {
		return
	}
	r.add(Measurement{Value: d, At: time.Now()})
}

// RecordKeyPress records the input arrival to trigger call interval.
func (m *Monitor) RecordKeyPress(start, end time.Time) {
	m.Record(CategoryKeyPress, end.Sub(start))
}

// RecordAudioTrigger records the trigger call to backend handoff interval.
func (m *Monitor) RecordAudioTrigger(start, end time.Time) {
	m.Record(CategoryAudioTrigger, end.Sub(start))
}

// RecordTotal records the input arrival to audible output interval.
func (m *Monitor) RecordTotal(start, end time.Time) {
	m.Record(CategoryTotal, end.Sub(start))
}

// RecordBuffer records a device buffer delay sample.
func (m *Monitor) RecordBuffer(d time.Duration) {
	m.Record(CategoryBuffer, d)
}

// Subscribe registers a callback for monitor events and returns its
// unsubscribe function. Callbacks run on the monitoring goroutine: keep
// them fast, and never call StopMonitoring or Dispose from inside one.
// A panicking callback is logged and does not disturb other subscribers.
func (m *Monitor) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// StartMonitoring begins periodic assessment. A non-positive interval
// selects DefaultInterval. Starting an active monitor is a no-op.
func (m *Monitor) StartMonitoring(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.monitoring {
		return
	}
	m.monitoring = true
	m.stopCh = make(chan struct{})
	m.wg.Add(1)
	go m.run(interval, m.stopCh)

	log.Printf("Latency monitoring started (every %v)", interval)
}

// StopMonitoring halts periodic assessment. On return, no further
// notifications fire: an in-flight tick either finished delivering
// before return or observed the stop and skipped delivery.
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	m.monitoring = false
	close(m.stopCh)
	m.stopCh = nil
	m.mu.Unlock()

	m.wg.Wait()
	log.Printf("Latency monitoring stopped")
}

func (m *Monitor) run(interval time.Duration, stopCh chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick performs one assessment: probe the device, recompute status,
// evaluate tuning rules, and notify subscribers.
func (m *Monitor) tick() {
	var (
		probed  bool
		samples time.Duration
	)
	if m.probe != nil {
		d, err := m.probe()
		if err != nil {
			m.warnProbe(err)
		} else {
			probed = true
			samples = d
		}
	}

	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	if probed {
		m.rings[CategoryBuffer].add(Measurement{Value: samples, At: time.Now()})
	}

	status := m.statusLocked()
	events := []Event{{Type: EventStatus, Status: &status}}
	if len(status.Recommendations) > 0 {
		events = append(events, Event{Type: EventSuggestions, Suggestions: status.Recommendations})
	}
	for _, action := range m.applyRulesLocked(status.Categories) {
		events = append(events, Event{Type: EventOptimization, Action: action})
	}

	subs := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, e := range events {
		for _, fn := range subs {
			deliver(fn, e)
		}
	}
}

// warnProbe logs the first probe failure; later failures are silent.
func (m *Monitor) warnProbe(err error) {
	m.mu.Lock()
	warned := m.probeWarn
	m.probeWarn = true
	m.mu.Unlock()
	if !warned {
		log.Printf("Warning: device latency probe failed: %v", err)
	}
}

// deliver runs one callback, isolating panics from other subscribers.
func deliver(fn func(Event), e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Latency subscriber panic: %v", r)
		}
	}()
	fn(e)
}

// Analysis returns per-category stats over the rolling windows. Empty
// categories report zeros with RatingUnknown.
func (m *Monitor) Analysis() map[Category]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analysisLocked()
}

func (m *Monitor) analysisLocked() map[Category]Stats {
	out := make(map[Category]Stats, len(m.rings))
	for c, r := range m.rings {
		avg, min, max, count := r.stats()
		s := Stats{AverageMs: avg, MinMs: min, MaxMs: max, Count: count}
		if count == 0 {
			s.Rating = RatingUnknown
		} else {
			s.Rating = Rate(avg)
		}
		out[c] = s
	}
	return out
}

// CategoryStats returns one category's rolling stats.
func (m *Monitor) CategoryStats(c Category) Stats {
	return m.Analysis()[c]
}

// Status assesses the whole pipeline: per-category stats, an overall
// rating from the total window, and recommendations when totals degrade.
func (m *Monitor) Status() PerformanceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Monitor) statusLocked() PerformanceStatus {
	stats := m.analysisLocked()
	overall := RatingUnknown
	if total := stats[CategoryTotal]; total.Count > 0 {
		overall = total.Rating
	}
	return PerformanceStatus{
		Categories:      stats,
		Overall:         overall,
		Recommendations: recommendationsFor(stats),
		At:              time.Now(),
	}
}

// Export copies the full monitor state for serialization.
func (m *Monitor) Export() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	measurements := make(map[Category][]SnapshotMeasurement, len(m.rings))
	for c, r := range m.rings {
		values := r.values()
		out := make([]SnapshotMeasurement, len(values))
		for i, v := range values {
			out[i] = SnapshotMeasurement{
				Ms: float64(v.Value) / float64(time.Millisecond),
				At: v.At,
			}
		}
		measurements[c] = out
	}

	return Snapshot{
		At:           time.Now(),
		Measurements: measurements,
		Analysis:     m.analysisLocked(),
		Flags:        m.flags,
	}
}

// ClearMeasurements empties every window. Subscriptions and flags keep
// their state.
func (m *Monitor) ClearMeasurements() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rings {
		r.clear()
	}
}

// Flags returns a copy of the optimization flags.
func (m *Monitor) Flags() OptimizationFlags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags
}

// MarkBufferSizeReduced latches the buffer tuning flag. Called by the
// engine when a device retune succeeds.
func (m *Monitor) MarkBufferSizeReduced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags.BufferSizeReduced = true
}

// MarkMixerPath latches the mixer path flag. Called by the engine when
// the callback-mixing backend is active.
func (m *Monitor) MarkMixerPath() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags.MixerPathEnabled = true
}

// Dispose stops monitoring and releases subscribers and measurements.
// Safe to call more than once.
func (m *Monitor) Dispose() {
	m.StopMonitoring()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = make(map[int]func(Event))
	for _, r := range m.rings {
		r.clear()
	}
}
