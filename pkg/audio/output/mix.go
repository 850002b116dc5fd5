// ABOUTME: Channel layout adaptation for playback
// ABOUTME: Maps region channel counts onto the device channel count
package output

// adaptChannels maps planar sample data onto a device channel layout.
// Mono fans out to every device channel, extra channels fold down by
// averaging, and a short layout repeats its last channel. The returned
// slices may alias the input; callers must treat them as read-only.
func adaptChannels(channels [][]float32, want int) [][]float32 {
	if want <= 0 || len(channels) == 0 || len(channels) == want {
		return channels
	}

	if len(channels) == 1 {
		out := make([][]float32, want)
		for i := range out {
			out[i] = channels[0]
		}
		return out
	}

	if want == 1 {
		frames := len(channels[0])
		mixed := make([]float32, frames)
		for _, ch := range channels {
			for f := 0; f < frames && f < len(ch); f++ {
				mixed[f] += ch[f]
			}
		}
		scale := float32(1) / float32(len(channels))
		for f := range mixed {
			mixed[f] *= scale
		}
		return [][]float32{mixed}
	}

	out := make([][]float32, want)
	for i := 0; i < want; i++ {
		if i < len(channels) {
			out[i] = channels[i]
		} else {
			out[i] = channels[len(channels)-1]
		}
	}
	return out
}
