// ABOUTME: WAV file decoding
// ABOUTME: Reads PCM WAV files into planar float32 buffers
package source

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
)

// loadWAV decodes a PCM WAV file at its stored bit depth.
func loadWAV(r io.ReadSeeker) (*audio.SourceBuffer, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV: %w", err)
	}

	bitDepth := int(d.SampleBitDepth())
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(math.Pow(2, float64(bitDepth-1)))

	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("WAV file reports %d channels", channels)
	}
	frames := len(buf.Data) / channels

	planar := make([][]float32, channels)
	for c := range planar {
		planar[c] = make([]float32, frames)
	}
	for i := 0; i < frames*channels; i++ {
		planar[i%channels][i/channels] = float32(buf.Data[i]) / scale
	}

	return &audio.SourceBuffer{Channels: planar, SampleRate: buf.Format.SampleRate}, nil
}
