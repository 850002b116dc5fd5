// ABOUTME: MP3 decoding
// ABOUTME: Reads MP3 files and streams into planar float32 buffers
package source

import (
	"encoding/binary"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
)

// loadMP3 decodes an entire MP3 stream. The decoder always produces
// interleaved 16-bit little-endian stereo.
func loadMP3(r io.Reader) (*audio.SourceBuffer, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("failed to read MP3 samples: %w", err)
	}

	frames := len(raw) / 4
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(raw[i*4:])))
		right[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(raw[i*4+2:])))
	}

	return &audio.SourceBuffer{
		Channels:   [][]float32{left, right},
		SampleRate: d.SampleRate(),
	}, nil
}
