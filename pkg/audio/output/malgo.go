// ABOUTME: Malgo-based playback backend using miniaudio
// ABOUTME: Mixes all active voices inside the device data callback
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Malgo backend using the malgo/miniaudio library. A single playback
// device runs a data callback that sums the cursors of every active
// voice, so layering cost is one multiply-add per voice per sample.
type Malgo struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	cfg      Config
	voices   []*malgoVoice
	mixBuf   []float32
	doneCh   chan func()
	stopCh   chan struct{}
	ready    bool
}

// NewMalgo creates a Malgo backend.
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Open initializes the playback device. Reopening with the same config
// reuses the device; a changed config reinitializes it.
func (m *Malgo) Open(cfg Config) error {
	cfg = cfg.WithDefaults()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil && m.cfg == cfg {
		log.Printf("Audio output already initialized with same config, reusing device")
		return nil
	}

	if m.device != nil {
		log.Printf("Config change detected (%dHz/%dch/%v -> %dHz/%dch/%v), reinitializing device",
			m.cfg.SampleRate, m.cfg.Channels, m.cfg.BufferSize,
			cfg.SampleRate, cfg.Channels, cfg.BufferSize)
		m.closeDeviceLocked()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	if err := m.openDeviceLocked(cfg); err != nil {
		return err
	}

	if m.doneCh == nil {
		m.doneCh = make(chan func(), 64)
		m.stopCh = make(chan struct{})
		go m.donePump(m.doneCh, m.stopCh)
	}

	log.Printf("Audio output initialized: %dHz, %d channels, %v period (malgo)",
		cfg.SampleRate, cfg.Channels, cfg.BufferSize)

	return nil
}

// openDeviceLocked configures and starts the device. Caller holds m.mu.
func (m *Malgo) openDeviceLocked(cfg Config) error {
	periodFrames := audio.FramesForDuration(cfg.BufferSize, cfg.SampleRate)
	if periodFrames < 1 {
		periodFrames = 1
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(periodFrames)
	deviceConfig.Periods = 2
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			m.dataCallback(pOutputSample, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.cfg = cfg
	m.ready = true
	return nil
}

// Schedule adds a voice to the mix set.
func (m *Malgo) Schedule(region audio.Region, deadline time.Time, gain float64, done func()) (VoiceHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return nil, ErrNotOpen
	}

	v := &malgoVoice{
		backend:  m,
		channels: adaptChannels(region.Channels, m.cfg.Channels),
		gain:     float32(gain),
		startAt:  deadline,
		done:     done,
	}

	if region.Frames() == 0 {
		v.finish()
		return v, nil
	}

	m.voices = append(m.voices, v)
	return v, nil
}

// dataCallback fills one device period: mix active voices into a float
// scratch buffer, then convert to 16-bit output.
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	m.mu.Lock()

	channels := m.cfg.Channels
	totalSamples := int(frameCount) * channels
	if cap(m.mixBuf) < totalSamples {
		m.mixBuf = make([]float32, totalSamples)
	}
	mix := m.mixBuf[:totalSamples]
	for i := range mix {
		mix[i] = 0
	}

	now := time.Now()
	var finished []*malgoVoice
	kept := m.voices[:0]
	for _, v := range m.voices {
		if v.stopped {
			finished = append(finished, v)
			continue
		}
		if now.Before(v.startAt) {
			kept = append(kept, v)
			continue
		}
		if v.mix(mix, int(frameCount), channels) {
			finished = append(finished, v)
		} else {
			kept = append(kept, v)
		}
	}
	m.voices = kept
	doneCh := m.doneCh
	m.mu.Unlock()

	for i, sample := range mix {
		s := audio.SampleToInt16(sample)
		pOutput[i*2] = byte(s)
		pOutput[i*2+1] = byte(s >> 8)
	}

	// Completion callbacks run off the audio thread.
	for _, v := range finished {
		v := v
		select {
		case doneCh <- v.finish:
		default:
			go v.finish()
		}
	}
}

// donePump runs voice completion callbacks outside the device callback.
func (m *Malgo) donePump(doneCh chan func(), stopCh chan struct{}) {
	for {
		select {
		case fn := <-doneCh:
			fn()
		case <-stopCh:
			return
		}
	}
}

// Latency reports one period as the base path and the full device buffer
// as the output path.
func (m *Malgo) Latency() DeviceLatency {
	m.mu.Lock()
	defer m.mu.Unlock()
	return DeviceLatency{
		Base:   m.cfg.BufferSize,
		Output: 2 * m.cfg.BufferSize,
	}
}

// Retune reinitializes the device with a smaller period. Active voices
// carry over; their cursors keep position across the swap.
func (m *Malgo) Retune(buffer time.Duration) error {
	if buffer <= 0 {
		return fmt.Errorf("invalid buffer %v", buffer)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return ErrNotOpen
	}
	if buffer == m.cfg.BufferSize {
		return nil
	}

	cfg := m.cfg
	cfg.BufferSize = buffer
	m.closeDeviceLocked()
	if err := m.openDeviceLocked(cfg); err != nil {
		return fmt.Errorf("failed to reopen device with %v period: %w", buffer, err)
	}

	log.Printf("Device period retuned to %v", buffer)
	return nil
}

// Close stops the device, flushes voice completions, and frees the context.
func (m *Malgo) Close() error {
	m.mu.Lock()
	m.closeDeviceLocked()

	voices := m.voices
	m.voices = nil

	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
		m.doneCh = nil
	}

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	m.mu.Unlock()

	for _, v := range voices {
		v.finish()
	}
	return nil
}

// closeDeviceLocked stops and uninitializes the device. Caller holds m.mu.
func (m *Malgo) closeDeviceLocked() {
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
		m.ready = false
	}
}

func (m *Malgo) stopVoice(v *malgoVoice) {
	m.mu.Lock()
	v.stopped = true
	m.mu.Unlock()
	v.finish()
}

// malgoVoice is one sample cursor in the mix set. Fields are guarded by
// the backend mutex; the callback advances pos.
type malgoVoice struct {
	backend  *Malgo
	channels [][]float32
	gain     float32
	pos      int
	startAt  time.Time
	stopped  bool
	done     func()
	doneOnce sync.Once
}

// mix adds up to frames samples into out and reports whether the voice
// is exhausted. Caller holds the backend mutex.
func (v *malgoVoice) mix(out []float32, frames, channels int) bool {
	remaining := len(v.channels[0]) - v.pos
	n := frames
	if n > remaining {
		n = remaining
	}

	for f := 0; f < n; f++ {
		for c := 0; c < channels; c++ {
			out[f*channels+c] += v.channels[c][v.pos+f] * v.gain
		}
	}
	v.pos += n

	return v.pos >= len(v.channels[0])
}

// Stop removes the voice from the mix on the next callback.
func (v *malgoVoice) Stop() {
	v.backend.stopVoice(v)
}

func (v *malgoVoice) finish() {
	v.doneOnce.Do(func() {
		if v.done != nil {
			v.done()
		}
	})
}
