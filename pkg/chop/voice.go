// ABOUTME: Voice bookkeeping for layered playback
// ABOUTME: Tracks each scheduled voice from trigger to completion
package chop

import (
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio/output"
)

// VoiceState tracks a voice's lifecycle.
type VoiceState int

const (
	// VoicePlaying means the backend is rendering the voice.
	VoicePlaying VoiceState = iota
	// VoiceStopped means the voice finished or was silenced.
	VoiceStopped
)

// Voice is one playing instance of a pad's sample. Triggering a pad
// again layers a new voice; voices are independent once scheduled.
// Fields are guarded by the engine's mutex.
type Voice struct {
	ID        string
	PadID     string
	Gain      float64
	StartedAt time.Time
	State     VoiceState

	handle output.VoiceHandle
}
