// ABOUTME: WebSocket client for the status feed
// ABOUTME: Connects to a sampler and routes events to channels
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/latency"
)

// ClientConfig holds feed client configuration.
type ClientConfig struct {
	ServerAddr string
}

// Client subscribes to a sampler's status feed.
type Client struct {
	config ClientConfig
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Message channels
	Events    chan latency.Event
	Snapshots chan latency.Snapshot

	// Publisher identity, valid after Connect.
	hello Hello

	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a feed client.
func NewClient(config ClientConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:    config,
		Events:    make(chan latency.Event, 100),
		Snapshots: make(chan latency.Snapshot, 4),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Connect dials the feed and waits for the publisher's hello.
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: "/feed"}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.awaitHello(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// awaitHello reads the publisher's identification frame.
func (c *Client) awaitHello() error {
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("failed to parse hello: %w", err)
	}
	if frame.Type != TypeHello {
		return fmt.Errorf("expected %s, got %s", TypeHello, frame.Type)
	}

	var hello Hello
	if err := json.Unmarshal(frame.Payload, &hello); err != nil {
		return fmt.Errorf("failed to parse hello payload: %w", err)
	}

	c.mu.Lock()
	c.hello = hello
	c.mu.Unlock()

	log.Printf("Subscribed to %s (%s %s)", hello.Name, hello.Product, hello.Version)
	return nil
}

// Publisher returns the hello received at connect time.
func (c *Client) Publisher() Hello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

// RequestSnapshot asks the publisher for a full export. The reply
// arrives on Snapshots.
func (c *Client) RequestSnapshot() error {
	return c.sendJSON(Frame{Type: TypeSnapshotRequest})
}

// sendJSON sends one frame.
func (c *Client) sendJSON(frame Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteJSON(frame)
}

// readMessages reads and routes incoming frames.
func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Printf("Feed read error: %v", err)
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame routes one frame to its channel.
func (c *Client) handleFrame(data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("Failed to parse feed frame: %v", err)
		return
	}

	switch frame.Type {
	case TypeEvent:
		var ev latency.Event
		if err := json.Unmarshal(frame.Payload, &ev); err != nil {
			log.Printf("Failed to parse event payload: %v", err)
			return
		}
		select {
		case c.Events <- ev:
		case <-c.ctx.Done():
		}

	case TypeSnapshot:
		var snap latency.Snapshot
		if err := json.Unmarshal(frame.Payload, &snap); err != nil {
			log.Printf("Failed to parse snapshot payload: %v", err)
			return
		}
		select {
		case c.Snapshots <- snap:
		case <-c.ctx.Done():
		}

	default:
		log.Printf("Unknown feed frame type: %s", frame.Type)
	}
}

// Close closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Feed connection closed")
	}
}

// IsConnected returns connection status.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
