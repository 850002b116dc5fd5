// ABOUTME: Simulated playback backend for tests and self-checks
// ABOUTME: Records scheduled voices and completes them on demand
package output

import (
	"sync"
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
)

// Sim is a deterministic in-memory backend. It plays nothing: scheduled
// voices sit in a set until Complete, CompleteAll, or Stop. Tests drive
// voice lifecycles explicitly, so no goroutines or timers are involved.
type Sim struct {
	mu        sync.Mutex
	cfg       Config
	open      bool
	latency   DeviceLatency
	voices    map[*SimVoice]struct{}
	scheduled int
	retunes   []time.Duration
}

// SimVoice records one scheduled voice.
type SimVoice struct {
	Region   audio.Region
	Deadline time.Time
	Gain     float64

	backend  *Sim
	done     func()
	doneOnce sync.Once
}

// NewSim creates a simulated backend reporting the given device latency.
func NewSim(latency DeviceLatency) *Sim {
	return &Sim{
		latency: latency,
		voices:  make(map[*SimVoice]struct{}),
	}
}

// Open marks the backend ready.
func (s *Sim) Open(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.WithDefaults()
	s.open = true
	return nil
}

// Schedule records the voice and returns its handle.
func (s *Sim) Schedule(region audio.Region, deadline time.Time, gain float64, done func()) (VoiceHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil, ErrNotOpen
	}

	v := &SimVoice{
		Region:   region,
		Deadline: deadline,
		Gain:     gain,
		backend:  s,
		done:     done,
	}
	s.scheduled++

	if region.Frames() == 0 {
		v.finish()
		return v, nil
	}

	s.voices[v] = struct{}{}
	return v, nil
}

// Latency reports the configured simulated latency.
func (s *Sim) Latency() DeviceLatency {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency
}

// SetLatency changes the reported latency.
func (s *Sim) SetLatency(l DeviceLatency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = l
}

// Retune records the request and shrinks the reported output latency.
func (s *Sim) Retune(buffer time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrNotOpen
	}
	s.retunes = append(s.retunes, buffer)
	s.cfg.BufferSize = buffer
	s.latency.Output = buffer
	return nil
}

// Close stops all voices and marks the backend not open.
func (s *Sim) Close() error {
	s.mu.Lock()
	voices := s.takeVoicesLocked()
	s.open = false
	s.mu.Unlock()

	for _, v := range voices {
		v.finish()
	}
	return nil
}

// ActiveVoices returns the number of voices not yet completed.
func (s *Sim) ActiveVoices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.voices)
}

// Voices returns the active voices, in no particular order.
func (s *Sim) Voices() []*SimVoice {
	s.mu.Lock()
	defer s.mu.Unlock()

	voices := make([]*SimVoice, 0, len(s.voices))
	for v := range s.voices {
		voices = append(voices, v)
	}
	return voices
}

// Scheduled returns the total number of Schedule calls accepted.
func (s *Sim) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled
}

// Retunes returns the buffer sizes passed to Retune, in order.
func (s *Sim) Retunes() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.retunes...)
}

// CompleteAll finishes every active voice, as if all samples played out.
func (s *Sim) CompleteAll() {
	s.mu.Lock()
	voices := s.takeVoicesLocked()
	s.mu.Unlock()

	for _, v := range voices {
		v.finish()
	}
}

func (s *Sim) takeVoicesLocked() []*SimVoice {
	voices := make([]*SimVoice, 0, len(s.voices))
	for v := range s.voices {
		voices = append(voices, v)
	}
	s.voices = make(map[*SimVoice]struct{})
	return voices
}

func (s *Sim) removeVoice(v *SimVoice) {
	s.mu.Lock()
	delete(s.voices, v)
	s.mu.Unlock()
}

// Complete finishes the voice as if its samples played out.
func (v *SimVoice) Complete() {
	v.backend.removeVoice(v)
	v.finish()
}

// Stop finishes the voice as if it were silenced early.
func (v *SimVoice) Stop() {
	v.backend.removeVoice(v)
	v.finish()
}

func (v *SimVoice) finish() {
	v.doneOnce.Do(func() {
		if v.done != nil {
			v.done()
		}
	})
}
