// ABOUTME: Oto-based playback backend
// ABOUTME: Plays each scheduled voice as its own oto player over in-memory PCM
package output

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// completionPollInterval is how often a voice checks whether its player
// has drained. Coarser than the audio buffer so polling stays cheap.
const completionPollInterval = 5 * time.Millisecond

// Oto backend using the oto library. Each voice is an independent
// oto.Player over the region's PCM bytes, so layered triggers mix in the
// shared context without any bookkeeping on our side.
type Oto struct {
	mu       sync.Mutex
	otoCtx   *oto.Context
	cfg      Config
	voiceBuf time.Duration
	voices   map[*otoVoice]struct{}
	ready    bool
}

// NewOto creates an Oto backend.
func NewOto() *Oto {
	return &Oto{
		voices: make(map[*otoVoice]struct{}),
	}
}

// Open initializes the oto context. oto allows one context per process,
// so a format change after the first open keeps the existing context.
func (o *Oto) Open(cfg Config) error {
	cfg = cfg.WithDefaults()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil && o.cfg.SampleRate == cfg.SampleRate && o.cfg.Channels == cfg.Channels {
		if !o.ready {
			if err := o.otoCtx.Resume(); err != nil {
				return fmt.Errorf("failed to resume oto context: %w", err)
			}
			o.ready = true
		}
		return nil
	}

	if o.otoCtx != nil {
		log.Printf("Warning: format change detected (%dHz %dch -> %dHz %dch) but oto doesn't support reinitialization. Continuing with existing context.",
			o.cfg.SampleRate, o.cfg.Channels, cfg.SampleRate, cfg.Channels)
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   cfg.BufferSize,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.cfg = cfg
	o.voiceBuf = cfg.BufferSize
	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels, %v buffer (oto)",
		cfg.SampleRate, cfg.Channels, cfg.BufferSize)

	return nil
}

// Schedule converts the region to device PCM and hands it to a fresh player.
func (o *Oto) Schedule(region audio.Region, deadline time.Time, gain float64, done func()) (VoiceHandle, error) {
	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return nil, ErrNotOpen
	}
	ctx := o.otoCtx
	cfg := o.cfg
	voiceBuf := o.voiceBuf
	o.mu.Unlock()

	v := &otoVoice{backend: o, done: done}

	if region.Frames() == 0 {
		v.finish()
		return v, nil
	}

	samples := audio.InterleaveInt16(adaptChannels(region.Channels, cfg.Channels))
	pcm := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
	}

	player := ctx.NewPlayer(bytes.NewReader(pcm))
	if voiceBuf > 0 {
		bytesPerSecond := cfg.SampleRate * cfg.Channels * 2
		player.SetBufferSize(int(voiceBuf.Seconds() * float64(bytesPerSecond)))
	}
	if gain < 0 {
		gain = 0
	}
	if gain > 1 {
		gain = 1
	}
	if gain != 1 {
		player.SetVolume(gain)
	}
	v.player = player

	o.mu.Lock()
	o.voices[v] = struct{}{}
	o.mu.Unlock()

	if wait := time.Until(deadline); wait > time.Millisecond {
		v.timer = time.AfterFunc(wait, v.start)
	} else {
		v.start()
	}

	return v, nil
}

// Latency reports the context buffer as the device path and the per-voice
// player buffer as the scheduling path.
func (o *Oto) Latency() DeviceLatency {
	o.mu.Lock()
	defer o.mu.Unlock()
	return DeviceLatency{
		Base:   o.voiceBuf,
		Output: o.cfg.BufferSize,
	}
}

// Retune shrinks the player buffer used by future voices. The context
// buffer is fixed after creation, so the device path cannot shrink.
func (o *Oto) Retune(buffer time.Duration) error {
	if buffer <= 0 {
		return fmt.Errorf("invalid buffer %v", buffer)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.ready {
		return ErrNotOpen
	}
	o.voiceBuf = buffer
	log.Printf("Voice buffer retuned to %v (device buffer fixed at %v)", buffer, o.cfg.BufferSize)
	return nil
}

// Close stops all voices and suspends the context. The context itself
// stays allocated; a later Open with the same format resumes it.
func (o *Oto) Close() error {
	o.mu.Lock()
	voices := make([]*otoVoice, 0, len(o.voices))
	for v := range o.voices {
		voices = append(voices, v)
	}
	o.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.otoCtx != nil && o.ready {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto context suspend error: %v", err)
		}
		o.ready = false
	}
	return nil
}

func (o *Oto) removeVoice(v *otoVoice) {
	o.mu.Lock()
	delete(o.voices, v)
	o.mu.Unlock()
}

// otoVoice is one playing sample. The player drains its reader and keeps
// reporting IsPlaying until the buffered audio is consumed.
type otoVoice struct {
	backend  *Oto
	player   *oto.Player
	timer    *time.Timer
	done     func()
	stopOnce sync.Once
	doneOnce sync.Once
}

func (v *otoVoice) start() {
	v.player.Play()
	go v.watch()
}

// watch polls for drain. Pause or Close also flips IsPlaying to false,
// so Stop terminates the loop as well.
func (v *otoVoice) watch() {
	ticker := time.NewTicker(completionPollInterval)
	defer ticker.Stop()

	for range ticker.C {
		if !v.player.IsPlaying() {
			v.Stop()
			return
		}
	}
}

// Stop silences the voice. Idempotent, also the natural-completion path.
func (v *otoVoice) Stop() {
	v.stopOnce.Do(func() {
		if v.timer != nil {
			v.timer.Stop()
		}
		if v.player != nil {
			v.player.Pause()
			if err := v.player.Close(); err != nil {
				log.Printf("Warning: player close error: %v", err)
			}
		}
		if v.backend != nil {
			v.backend.removeVoice(v)
		}
		v.finish()
	})
}

func (v *otoVoice) finish() {
	v.doneOnce.Do(func() {
		if v.done != nil {
			v.done()
		}
	})
}
