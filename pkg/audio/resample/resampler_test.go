// ABOUTME: Tests for the linear resampler
// ABOUTME: Tests frame math and interpolation behavior
package resample

import "testing"

func TestNewRejectsInvalidRates(t *testing.T) {
	tests := []struct {
		name    string
		in, out int
	}{
		{"zero input", 0, 44100},
		{"zero output", 44100, 0},
		{"negative", -1, 44100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.in, tt.out); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOutputFrames(t *testing.T) {
	tests := []struct {
		name     string
		in, out  int
		frames   int
		expected int
	}{
		{"same rate", 44100, 44100, 1000, 1000},
		{"downsample", 48000, 24000, 1000, 500},
		{"upsample", 22050, 44100, 1000, 2000},
		{"empty", 48000, 44100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.in, tt.out)
			if err != nil {
				t.Fatalf("new failed: %v", err)
			}
			if got := r.OutputFrames(tt.frames); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestResampleSameRatePassesThrough(t *testing.T) {
	r, _ := New(44100, 44100)
	input := [][]float32{{1, 2, 3}}

	out := r.Resample(input)
	if &out[0][0] != &input[0][0] {
		t.Error("expected same-rate input returned unchanged")
	}
}

func TestResampleInterpolates(t *testing.T) {
	// Doubling the rate of a ramp keeps it a ramp with midpoints
	r, _ := New(100, 200)
	input := [][]float32{{0, 1, 2, 3}}

	out := r.Resample(input)
	if len(out) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(out))
	}
	if len(out[0]) != 8 {
		t.Fatalf("expected 8 frames, got %d", len(out[0]))
	}

	expected := []float32{0, 0.5, 1, 1.5, 2, 2.5, 3, 3}
	for i, want := range expected {
		if out[0][i] != want {
			t.Errorf("frame %d: expected %f, got %f", i, want, out[0][i])
		}
	}
}

func TestResampleDownsamples(t *testing.T) {
	r, _ := New(200, 100)
	input := [][]float32{{0, 1, 2, 3, 4, 5, 6, 7}}

	out := r.Resample(input)
	if len(out[0]) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(out[0]))
	}
	expected := []float32{0, 2, 4, 6}
	for i, want := range expected {
		if out[0][i] != want {
			t.Errorf("frame %d: expected %f, got %f", i, want, out[0][i])
		}
	}
}

func TestResampleStereo(t *testing.T) {
	r, _ := New(100, 200)
	input := [][]float32{{0, 2}, {10, 12}}

	out := r.Resample(input)
	if len(out) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(out))
	}
	if out[0][1] != 1 || out[1][1] != 11 {
		t.Errorf("channels not interpolated independently: %v", out)
	}
}
