// ABOUTME: Ogg Opus file decoding
// ABOUTME: Streams Opus packets into planar float32 buffers
package source

import (
	"bytes"
	"fmt"
	"io"

	opus "gopkg.in/hraban/opus.v2"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
)

// opusRate is fixed: the Opus file decoder always outputs 48 kHz.
const opusRate = 48000

// loadOpus decodes an Ogg-encapsulated Opus file.
func loadOpus(r io.Reader) (*audio.SourceBuffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Opus file: %w", err)
	}
	channels := opusChannels(data)

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Opus stream: %w", err)
	}
	defer stream.Close()

	var interleaved []float32
	buf := make([]float32, 16384)
	for {
		n, err := stream.ReadFloat32(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("opus decode failed: %w", err)
		}
		interleaved = append(interleaved, buf[:n*channels]...)
	}

	return &audio.SourceBuffer{
		Channels:   audio.Deinterleave(interleaved, channels),
		SampleRate: opusRate,
	}, nil
}

// opusChannels reads the channel count out of the OpusHead header on the
// first Ogg page. The stream decoder does not expose it. Unreadable or
// absurd headers fall back to stereo.
func opusChannels(data []byte) int {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	idx := bytes.Index(head, []byte("OpusHead"))
	if idx < 0 || idx+9 >= len(data) {
		return 2
	}
	if n := int(data[idx+9]); n >= 1 && n <= 8 {
		return n
	}
	return 2
}
