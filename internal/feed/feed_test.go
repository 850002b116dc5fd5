// ABOUTME: Tests for the status feed
// ABOUTME: Runs a loopback server and subscriber through hello, events, and snapshots
package feed

import (
	"testing"
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/latency"
)

func TestNewServer(t *testing.T) {
	srv := NewServer(Config{Name: "Test Sampler"})
	if srv == nil {
		t.Fatal("expected server to be created")
	}
	if srv.Addr() != "" {
		t.Errorf("Addr = %q before Start, want empty", srv.Addr())
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(ClientConfig{ServerAddr: "localhost:9347"})
	if client == nil {
		t.Fatal("expected client to be created")
	}
	if client.config.ServerAddr != "localhost:9347" {
		t.Errorf("server addr = %s, want localhost:9347", client.config.ServerAddr)
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	srv := NewServer(Config{Name: "lonely"})
	status := latency.PerformanceStatus{Overall: latency.RatingGood}
	srv.Publish(latency.Event{Type: latency.EventStatus, Status: &status})
}

func TestFeedRoundTrip(t *testing.T) {
	srv := NewServer(Config{
		Name: "test-sampler",
		Snapshot: func() latency.Snapshot {
			return latency.Snapshot{
				At: time.Now(),
				Analysis: map[latency.Category]latency.Stats{
					latency.CategoryTotal: {AverageMs: 12.5, Count: 4, Rating: latency.RatingGood},
				},
			}
		},
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer srv.Stop()

	if srv.Port() == 0 {
		t.Fatal("no port bound after Start")
	}

	client := NewClient(ClientConfig{ServerAddr: srv.Addr()})
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	hello := client.Publisher()
	if hello.Name != "test-sampler" {
		t.Errorf("publisher name = %q, want test-sampler", hello.Name)
	}
	if hello.Product == "" || hello.Version == "" {
		t.Errorf("publisher identity incomplete: %+v", hello)
	}
	if srv.Subscribers() != 1 {
		t.Errorf("Subscribers = %d, want 1", srv.Subscribers())
	}

	// Status event reaches the subscriber.
	status := latency.PerformanceStatus{Overall: latency.RatingExcellent, At: time.Now()}
	srv.Publish(latency.Event{Type: latency.EventStatus, Status: &status})

	select {
	case ev := <-client.Events:
		if ev.Type != latency.EventStatus {
			t.Errorf("event type = %q, want %q", ev.Type, latency.EventStatus)
		}
		if ev.Status == nil || ev.Status.Overall != latency.RatingExcellent {
			t.Errorf("event status = %+v, want excellent overall", ev.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event arrived")
	}

	// Optimization events carry the fired action.
	srv.Publish(latency.Event{Type: latency.EventOptimization, Action: latency.ActionEnablePreloading})
	select {
	case ev := <-client.Events:
		if ev.Type != latency.EventOptimization || ev.Action != latency.ActionEnablePreloading {
			t.Errorf("event = %+v, want enablePreloading optimization", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no optimization event arrived")
	}

	// Snapshot request and reply.
	if err := client.RequestSnapshot(); err != nil {
		t.Fatalf("RequestSnapshot failed: %v", err)
	}
	select {
	case snap := <-client.Snapshots:
		if got := snap.Analysis[latency.CategoryTotal].AverageMs; got != 12.5 {
			t.Errorf("snapshot total average = %v, want 12.5", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot arrived")
	}
}

func TestServerStop(t *testing.T) {
	srv := NewServer(Config{Name: "stopping"})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	client := NewClient(ClientConfig{ServerAddr: srv.Addr()})
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	srv.Stop()

	// Stop twice is safe.
	srv.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Subscribers() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber still registered after Stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
