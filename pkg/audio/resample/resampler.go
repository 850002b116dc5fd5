// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Converts planar float32 buffers between sample rates using linear interpolation
package resample

import "fmt"

// Resampler performs linear interpolation to convert between sample rates.
type Resampler struct {
	inputRate  int
	outputRate int
	ratio      float64
}

// New creates a resampler for the given rate pair.
func New(inputRate, outputRate int) (*Resampler, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("invalid rate pair %d -> %d", inputRate, outputRate)
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		ratio:      float64(inputRate) / float64(outputRate),
	}, nil
}

// OutputFrames returns how many frames the conversion of inputFrames produces.
func (r *Resampler) OutputFrames(inputFrames int) int {
	if inputFrames == 0 {
		return 0
	}
	return int(float64(inputFrames) / r.ratio)
}

// Resample converts planar channel data from the input rate to the output
// rate. Each channel is interpolated independently; the input is not
// modified. Equal rates return the input unchanged.
func (r *Resampler) Resample(input [][]float32) [][]float32 {
	if r.inputRate == r.outputRate || len(input) == 0 {
		return input
	}

	inputFrames := len(input[0])
	outputFrames := r.OutputFrames(inputFrames)
	output := make([][]float32, len(input))

	for c, in := range input {
		out := make([]float32, outputFrames)
		for i := 0; i < outputFrames; i++ {
			pos := float64(i) * r.ratio
			idx := int(pos)
			if idx >= inputFrames-1 {
				out[i] = in[inputFrames-1]
				continue
			}
			frac := float32(pos - float64(idx))

			// Linear interpolation between adjacent frames
			out[i] = in[idx]*(1-frac) + in[idx+1]*frac
		}
		output[c] = out
	}

	return output
}
