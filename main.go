// ABOUTME: Entry point for the chopshop sampler
// ABOUTME: Parses CLI flags, preloads the pads, and starts the TUI
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/internal/chops"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/internal/discovery"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/internal/feed"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/internal/source"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/internal/ui"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/internal/version"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio/output"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/chop"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/latency"
)

var (
	file       = flag.String("file", "", "Audio file or URL to chop (wav, mp3, flac, opus)")
	chopsFile  = flag.String("chops", "", "JSON chop definitions (default: even 16-pad grid)")
	backendArg = flag.String("backend", "oto", "Audio backend: oto, malgo, or sim")
	bufferMs   = flag.Int("buffer-ms", 10, "Output buffer size in milliseconds")
	maxVoices  = flag.Int("max-voices", 0, "Max voices per pad, 0 for unbounded layering")
	name       = flag.String("name", "", "Sampler name on the status feed (default: hostname-chopshop)")
	feedPort   = flag.Int("feed-port", 9314, "Status feed port, -1 to disable")
	advertise  = flag.Bool("advertise", true, "Advertise the status feed via mDNS")
	logFile    = flag.String("log-file", "chopshop.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, serve the feed headless")
)

func main() {
	flag.Parse()

	if *file == "" {
		log.Fatalf("-file is required")
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Headless mode: log to both stdout and file
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	// Determine sampler name
	samplerName := *name
	if samplerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		samplerName = fmt.Sprintf("%s-chopshop", hostname)
	}

	if !useTUI {
		log.Printf("Starting %s %s: %s", version.Product, version.Version, samplerName)
	}

	// Load the source and work out the pad regions
	src, err := source.Load(*file)
	if err != nil {
		log.Fatalf("Failed to load audio: %v", err)
	}

	var chopList []chop.Chop
	if *chopsFile != "" {
		chopList, err = chops.Load(*chopsFile)
		if err != nil {
			log.Fatalf("Failed to load chops: %v", err)
		}
	} else {
		chopList = chops.EvenGrid(src.Duration())
	}

	backend, err := pickBackend(*backendArg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// The probe closes over engine, which is created just below with
	// the monitor wired in.
	var engine *chop.Engine
	mon := latency.NewMonitor(latency.Config{
		Probe: func() (time.Duration, error) {
			return engine.LatencyProbe()()
		},
	})

	engine = chop.New(backend, nil, chop.Config{
		BufferSize:      time.Duration(*bufferMs) * time.Millisecond,
		MaxVoicesPerPad: *maxVoices,
		Monitor:         mon,
	})

	if err := engine.Initialize(); err != nil {
		log.Fatalf("Failed to open audio device: %v", err)
	}

	// The malgo backend mixes every voice in one device callback.
	if _, ok := backend.(*output.Malgo); ok {
		mon.MarkMixerPath()
	}

	if err := engine.PreloadAll(src, chopList); err != nil {
		log.Printf("Preload warning: %v", err)
	}

	// TUI setup
	var tuiProg *tea.Program
	var padCtrl *ui.PadControl

	if useTUI {
		padCtrl = ui.NewPadControl()
		tuiProg, err = ui.Run(padCtrl)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go tuiProg.Run()
	}

	// Helper to update TUI
	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	updateTUI(ui.StatusMsg{
		Title:      filepath.Base(*file),
		SampleRate: src.SampleRate,
		Channels:   src.NumChannels(),
		Duration:   src.Duration(),
		PadStates:  engine.Cache().States(),
	})

	// Status feed and discovery
	var feedSrv *feed.Server
	var disc *discovery.Manager

	if *feedPort >= 0 {
		feedSrv = feed.NewServer(feed.Config{
			Port:     *feedPort,
			Name:     samplerName,
			Snapshot: mon.Export,
		})
		if err := feedSrv.Start(); err != nil {
			log.Printf("Feed disabled: %v", err)
			feedSrv = nil
		} else {
			log.Printf("Status feed on %s", feedSrv.Addr())
			mon.Subscribe(feedSrv.Publish)

			if *advertise {
				disc = discovery.NewManager(discovery.Config{
					InstanceName: samplerName,
					Port:         feedSrv.Port(),
				})
				if err := disc.Advertise(); err != nil {
					log.Printf("mDNS advertise failed: %v", err)
				}
			}
		}
	}

	// Forward monitor assessments to the TUI and act on tuning requests
	mon.Subscribe(func(e latency.Event) {
		switch e.Type {
		case latency.EventStatus:
			flags := mon.Flags()
			updateTUI(ui.StatusMsg{Status: e.Status, Flags: &flags})
		case latency.EventSuggestions:
			log.Printf("Latency suggestions: %v", e.Suggestions)
		case latency.EventOptimization:
			go applyOptimization(engine, src, chopList, e.Action)
		}
	})

	mon.StartMonitoring(latency.DefaultInterval)
	monitoring := true
	updateTUI(ui.StatusMsg{Monitoring: &monitoring})

	if padCtrl != nil {
		go handlePads(engine, backend, mon, padCtrl, updateTUI)
	}

	if tuiProg != nil {
		go statsUpdateLoop(engine, updateTUI)
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for quit signal from TUI or OS
	if padCtrl != nil {
		select {
		case <-padCtrl.Quit:
			log.Printf("Received quit signal from TUI")
		case <-sigChan:
			log.Printf("Shutdown signal received")
			tuiProg.Quit()
		}
	} else {
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	mon.StopMonitoring()
	if disc != nil {
		disc.Stop()
	}
	if feedSrv != nil {
		feedSrv.Stop()
	}
	if err := engine.Dispose(); err != nil {
		log.Printf("Error closing engine: %v", err)
	}
	mon.Dispose()

	log.Printf("Sampler stopped")
}

// pickBackend selects the audio output backend by name
func pickBackend(name string) (output.Backend, error) {
	switch strings.ToLower(name) {
	case "oto":
		return output.NewOto(), nil
	case "malgo":
		return output.NewMalgo(), nil
	case "sim":
		return output.NewSim(output.DeviceLatency{}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want oto, malgo, or sim)", name)
	}
}

// handlePads triggers pads and routes commands from the TUI
func handlePads(engine *chop.Engine, backend output.Backend, mon *latency.Monitor, ctrl *ui.PadControl, updateTUI func(ui.StatusMsg)) {
	monitoring := true

	for {
		select {
		case hit := <-ctrl.Pads:
			start := time.Now()
			res, err := engine.Trigger(hit.Pad, 1.0, chop.TriggerOptions{})
			if err != nil {
				log.Printf("Pad %s: %v", hit.Pad, err)
				continue
			}
			mon.RecordKeyPress(hit.At, start)
			mon.RecordTotal(hit.At, start.Add(res.Latency).Add(backend.Latency().Total()))

		case cmd := <-ctrl.Commands:
			switch cmd.Kind {
			case ui.CommandStopAll:
				engine.StopAll()
				log.Printf("Stopped all voices")
			case ui.CommandOptimize:
				if err := engine.OptimizeForUltraLowLatency(); err != nil {
					log.Printf("Retune failed: %v", err)
				}
			case ui.CommandToggleMonitor:
				if monitoring {
					mon.StopMonitoring()
				} else {
					mon.StartMonitoring(latency.DefaultInterval)
				}
				monitoring = !monitoring
				updateTUI(ui.StatusMsg{Monitoring: &monitoring})
			}
		}
	}
}

// applyOptimization maps one adaptive tuning action onto the engine
func applyOptimization(engine *chop.Engine, src *audio.SourceBuffer, chopList []chop.Chop, action latency.Action) {
	switch action {
	case latency.ActionEnablePreloading:
		log.Printf("Adaptive tuning: re-preloading all pads")
		if err := engine.PreloadAll(src, chopList); err != nil {
			log.Printf("Preload failed: %v", err)
		}
	case latency.ActionOptimizeContext:
		log.Printf("Adaptive tuning: retuning for a smaller buffer")
		if err := engine.OptimizeForUltraLowLatency(); err != nil {
			log.Printf("Retune failed: %v", err)
		}
	}
}

// statsUpdateLoop periodically updates the TUI with engine metrics
func statsUpdateLoop(engine *chop.Engine, updateTUI func(ui.StatusMsg)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		m := engine.Metrics()
		updateTUI(ui.StatusMsg{
			Metrics:   &m,
			PadStates: engine.Cache().States(),
		})
	}
}
