// ABOUTME: Sample format conversion utilities
// ABOUTME: Converts between float32 PCM and 16-bit integer representations
package audio

const (
	// 16-bit audio range constants
	Max16Bit = 32767
	Min16Bit = -32768
)

// SampleToInt16 converts a float32 sample in [-1, 1] to int16, clamping
// out-of-range input instead of wrapping.
func SampleToInt16(sample float32) int16 {
	if sample >= 1.0 {
		return Max16Bit
	}
	if sample <= -1.0 {
		return Min16Bit
	}
	return int16(sample * 32767.0)
}

// SampleFromInt16 converts an int16 sample to float32 in [-1, 1).
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768.0
}

// Interleave merges planar channel data into a single frame-ordered slice
// (L0 R0 L1 R1 ...). Channels must be equal length.
func Interleave(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	out := make([]float32, 0, frames*len(channels))
	for f := 0; f < frames; f++ {
		for _, ch := range channels {
			out = append(out, ch[f])
		}
	}
	return out
}

// Deinterleave splits frame-ordered sample data into planar channels.
// Trailing samples that do not fill a whole frame are dropped.
func Deinterleave(samples []float32, numChannels int) [][]float32 {
	if numChannels <= 0 {
		return nil
	}
	frames := len(samples) / numChannels
	channels := make([][]float32, numChannels)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}
	for f := 0; f < frames; f++ {
		for c := 0; c < numChannels; c++ {
			channels[c][f] = samples[f*numChannels+c]
		}
	}
	return channels
}

// InterleaveInt16 converts planar float32 data straight to interleaved
// int16 samples, clamping each value.
func InterleaveInt16(channels [][]float32) []int16 {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	out := make([]int16, 0, frames*len(channels))
	for f := 0; f < frames; f++ {
		for _, ch := range channels {
			out = append(out, SampleToInt16(ch[f]))
		}
	}
	return out
}
