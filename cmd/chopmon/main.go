// ABOUTME: Remote latency dashboard for running samplers
// ABOUTME: Discovers a status feed via mDNS and renders its event stream
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/internal/discovery"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/internal/feed"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/latency"
)

var (
	serverAddr = flag.String("server", "", "Manual feed address (skip mDNS)")
	waitFor    = flag.Duration("wait", 10*time.Second, "How long to wait for discovery")
	logFile    = flag.String("log-file", "chopmon.log", "Log file path")
)

func main() {
	flag.Parse()

	// The dashboard owns the terminal, so logs go to file only
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()
	log.SetOutput(f)

	addr := *serverAddr
	samplerName := addr

	if addr == "" {
		fmt.Println("Looking for samplers on the local network...")

		disc := discovery.NewManager(discovery.Config{})
		disc.Browse()

		select {
		case sampler := <-disc.Samplers():
			addr = sampler.Addr()
			samplerName = sampler.Name
			fmt.Printf("Found %s at %s\n", sampler.Name, addr)
		case <-time.After(*waitFor):
			disc.Stop()
			fmt.Fprintf(os.Stderr, "No sampler found after %v\n", *waitFor)
			os.Exit(1)
		}
		disc.Stop()
	}

	client := feed.NewClient(feed.ClientConfig{ServerAddr: addr})
	if err := client.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if hello := client.Publisher(); hello.Name != "" {
		samplerName = hello.Name
	}

	tui := feed.NewMonitorTUI()

	initial := feed.MonitorStatus{
		Sampler:   samplerName,
		Addr:      addr,
		Connected: true,
	}

	go pump(client, tui, initial)

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		tui.Stop()
	}()

	if err := tui.Start(initial); err != nil {
		log.Fatalf("TUI error: %v", err)
	}

	log.Printf("Monitor stopped")
}

// pump routes feed traffic and snapshot requests to the dashboard
func pump(client *feed.Client, tui *feed.MonitorTUI, status feed.MonitorStatus) {
	connCheck := time.NewTicker(time.Second)
	defer connCheck.Stop()

	for {
		select {
		case ev := <-client.Events:
			switch ev.Type {
			case latency.EventStatus:
				status.Status = ev.Status
			case latency.EventOptimization:
				status.Actions = append(status.Actions, string(ev.Action))
				if len(status.Actions) > 5 {
					status.Actions = status.Actions[1:]
				}
			}
			tui.Update(status)

		case snap := <-client.Snapshots:
			status.Flags = snap.Flags
			path, err := saveSnapshot(snap)
			if err != nil {
				log.Printf("Failed to save snapshot: %v", err)
			} else {
				log.Printf("Saved snapshot to %s", path)
			}
			tui.Update(status)

		case <-tui.SnapshotChan():
			if err := client.RequestSnapshot(); err != nil {
				log.Printf("Snapshot request failed: %v", err)
			}

		case <-connCheck.C:
			if status.Connected != client.IsConnected() {
				status.Connected = client.IsConnected()
				tui.Update(status)
			}
		}
	}
}

// saveSnapshot writes one export to a timestamped JSON file
func saveSnapshot(snap latency.Snapshot) (string, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	path := fmt.Sprintf("chopmon-%s.json", time.Now().Format("20060102-150405"))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return path, nil
}
