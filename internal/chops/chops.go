// ABOUTME: Chop definition files and default pad layouts
// ABOUTME: Parses JSON chop lists and slices sources evenly across the grid
// Package chops maps regions of a source file onto sampler pads.
package chops

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/chop"
)

// PadOrder is the 4x4 grid, row by row, matching the keyboard layout.
var PadOrder = []string{
	"1", "2", "3", "4",
	"q", "w", "e", "r",
	"a", "s", "d", "f",
	"z", "x", "c", "v",
}

// Definition is one pad binding in a chops file. Times are seconds.
type Definition struct {
	Pad    string  `json:"pad"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Volume float64 `json:"volume,omitempty"`
}

// Load reads and parses a chops file.
func Load(path string) ([]chop.Chop, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open chops file: %w", err)
	}
	defer f.Close()

	defs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("invalid chops file %s: %w", path, err)
	}
	return defs, nil
}

// Parse decodes a JSON chop list. Each pad may appear once; region
// bounds are checked against the source at preload time, so only the
// obviously broken entries are rejected here.
func Parse(r io.Reader) ([]chop.Chop, error) {
	var defs []Definition
	if err := json.NewDecoder(r).Decode(&defs); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	seen := make(map[string]bool, len(defs))
	out := make([]chop.Chop, 0, len(defs))
	for i, d := range defs {
		if d.Pad == "" {
			return nil, fmt.Errorf("entry %d has no pad", i)
		}
		if seen[d.Pad] {
			return nil, fmt.Errorf("pad %q is defined twice", d.Pad)
		}
		seen[d.Pad] = true

		if d.End <= d.Start {
			return nil, fmt.Errorf("pad %q has an empty region [%g, %g)", d.Pad, d.Start, d.End)
		}
		out = append(out, chop.Chop{
			PadID:  d.Pad,
			Start:  secondsToDuration(d.Start),
			End:    secondsToDuration(d.End),
			Volume: d.Volume,
		})
	}
	return out, nil
}

// EvenGrid slices the whole source evenly across the 16 pads.
func EvenGrid(total time.Duration) []chop.Chop {
	n := len(PadOrder)
	out := make([]chop.Chop, n)
	for i, pad := range PadOrder {
		out[i] = chop.Chop{
			PadID: pad,
			Start: total * time.Duration(i) / time.Duration(n),
			End:   total * time.Duration(i+1) / time.Duration(n),
		}
	}
	return out
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
