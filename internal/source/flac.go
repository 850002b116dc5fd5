// ABOUTME: FLAC file decoding
// ABOUTME: Parses FLAC frames into planar float32 buffers
package source

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
)

// loadFLAC decodes a FLAC file frame by frame at its stored bit depth.
func loadFLAC(r io.Reader) (*audio.SourceBuffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	channels := int(info.NChannels)
	if channels <= 0 {
		return nil, fmt.Errorf("FLAC file reports %d channels", channels)
	}
	bitDepth := int(info.BitsPerSample)
	scale := float32(int64(1) << (bitDepth - 1))

	planar := make([][]float32, channels)
	for c := range planar {
		planar[c] = make([]float32, 0, int(info.NSamples))
	}

	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}

		for ch := 0; ch < channels && ch < len(frame.Subframes); ch++ {
			samples := frame.Subframes[ch].Samples
			for i := 0; i < int(frame.BlockSize) && i < len(samples); i++ {
				planar[ch] = append(planar[ch], float32(samples[i])/scale)
			}
		}
	}

	return &audio.SourceBuffer{Channels: planar, SampleRate: int(info.SampleRate)}, nil
}
