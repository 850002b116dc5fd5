// ABOUTME: Headless latency self-test for the trigger pipeline
// ABOUTME: Fires a burst of triggers and grades the measured overhead
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/internal/chops"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio/output"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/chop"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/latency"
)

var (
	backendArg = flag.String("backend", "sim", "Audio backend: sim, oto, or malgo")
	triggers   = flag.Int("triggers", 200, "Number of triggers to fire")
	interval   = flag.Duration("interval", 5*time.Millisecond, "Delay between triggers")
	bufferMs   = flag.Int("buffer-ms", 10, "Output buffer size in milliseconds")
	export     = flag.String("export", "", "Write the full measurement export to this JSON file")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	fmt.Println("=== Chop Shop Latency Self-Test ===")
	fmt.Println("This test will:")
	fmt.Println("1. Preload a synthetic tone across all 16 pads")
	fmt.Printf("2. Fire %d triggers through the engine\n", *triggers)
	fmt.Println("3. Grade the measured latency per pipeline stage")
	fmt.Println()

	backend, err := pickBackend(*backendArg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	sim, _ := backend.(*output.Sim)

	var engine *chop.Engine
	mon := latency.NewMonitor(latency.Config{
		Probe: func() (time.Duration, error) {
			return engine.LatencyProbe()()
		},
	})

	engine = chop.New(backend, nil, chop.Config{
		BufferSize: time.Duration(*bufferMs) * time.Millisecond,
		Monitor:    mon,
	})

	if err := engine.Initialize(); err != nil {
		log.Fatalf("Failed to open audio device: %v", err)
	}
	defer engine.Dispose()

	src := makeTestTone(44100)
	if err := engine.PreloadAll(src, chops.EvenGrid(src.Duration())); err != nil {
		log.Fatalf("Preload failed: %v", err)
	}

	mon.StartMonitoring(100 * time.Millisecond)

	fmt.Printf("Firing %d triggers at %v intervals on %s...\n", *triggers, *interval, *backendArg)

	devTotal := backend.Latency().Total()
	failures := 0

	for i := 0; i < *triggers; i++ {
		pad := chops.PadOrder[i%len(chops.PadOrder)]

		start := time.Now()
		res, err := engine.Trigger(pad, 1.0, chop.TriggerOptions{})
		if err != nil {
			failures++
			log.Printf("Trigger %d (pad %s) failed: %v", i, pad, err)
			continue
		}

		mon.RecordTotal(start, start.Add(res.Latency).Add(devTotal))

		// The sim backend completes voices only on request
		if sim != nil {
			sim.CompleteAll()
		}

		time.Sleep(*interval)
	}

	// Let a final monitoring tick land before reading results
	time.Sleep(150 * time.Millisecond)
	mon.StopMonitoring()

	printReport(mon, engine.Metrics(), failures)

	if *export != "" {
		if err := writeExport(mon.Export(), *export); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		fmt.Printf("\nFull export written to %s\n", *export)
	}

	overall := mon.Status().Overall
	if failures > 0 || overall == latency.RatingUnacceptable {
		os.Exit(1)
	}
}

// pickBackend selects the audio output backend by name
func pickBackend(name string) (output.Backend, error) {
	switch strings.ToLower(name) {
	case "sim":
		return output.NewSim(output.DeviceLatency{
			Base:   time.Millisecond,
			Output: 5 * time.Millisecond,
		}), nil
	case "oto":
		return output.NewOto(), nil
	case "malgo":
		return output.NewMalgo(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want sim, oto, or malgo)", name)
	}
}

// makeTestTone builds one second of stereo sine at the given rate
func makeTestTone(rate int) *audio.SourceBuffer {
	left := make([]float32, rate)
	right := make([]float32, rate)

	for i := range left {
		s := float32(0.5 * math.Sin(2*math.Pi*220*float64(i)/float64(rate)))
		left[i] = s
		right[i] = s
	}

	return &audio.SourceBuffer{
		Channels:   [][]float32{left, right},
		SampleRate: rate,
	}
}

// printReport prints the per-stage latency table and the overall grade
func printReport(mon *latency.Monitor, metrics chop.Metrics, failures int) {
	analysis := mon.Analysis()
	status := mon.Status()

	fmt.Println()
	fmt.Println("Stage            Avg        Min        Max     Samples  Rating")
	fmt.Println("-----            ---        ---        ---     -------  ------")

	for _, cat := range latency.Categories() {
		stats := analysis[cat]
		if stats.Count == 0 {
			fmt.Printf("%-14s %9s %10s %10s %8d  %s\n", cat, "-", "-", "-", 0, stats.Rating)
			continue
		}
		fmt.Printf("%-14s %7.2fms %8.2fms %8.2fms %8d  %s\n",
			cat, stats.AverageMs, stats.MinMs, stats.MaxMs, stats.Count, stats.Rating)
	}

	fmt.Println()
	fmt.Printf("Triggers: %d  Drops: %d  Failures: %d\n", metrics.Triggers, metrics.Drops, failures)
	fmt.Printf("Overall: %s\n", status.Overall)

	for _, rec := range status.Recommendations {
		fmt.Printf("Tip: %s\n", rec)
	}

	flags := mon.Flags()
	if flags.PreloadingActive || flags.ContextOptimized {
		fmt.Printf("Adaptive tuning fired: preloading=%v context=%v\n",
			flags.PreloadingActive, flags.ContextOptimized)
	}
}

// writeExport saves the measurement snapshot as indented JSON
func writeExport(snap latency.Snapshot, path string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
