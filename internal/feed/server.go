// ABOUTME: WebSocket status feed server
// ABOUTME: Broadcasts latency monitor events to connected dashboards
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/internal/version"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/latency"
)

// Config holds feed server configuration.
type Config struct {
	// Port to listen on. Zero picks a free port.
	Port int

	// Name identifies this sampler in hello frames.
	Name string

	// Snapshot provides export data for snapshot requests. Optional;
	// without it snapshot requests are ignored.
	Snapshot func() latency.Snapshot
}

// Server broadcasts monitor events to websocket subscribers. Wire it to
// a latency.Monitor with monitor.Subscribe(server.Publish).
type Server struct {
	config   Config
	serverID string

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux
	listener   net.Listener

	subs   map[*subscriber]struct{}
	subsMu sync.RWMutex

	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// subscriber is one connected dashboard.
type subscriber struct {
	conn     *websocket.Conn
	sendChan chan Frame
}

// NewServer creates a feed server.
func NewServer(config Config) *Server {
	return &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local-network dashboards only; no origin allowlist.
				return true
			},
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// Start binds the listener and begins accepting subscribers.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	s.mux.HandleFunc("/feed", s.handleWebSocket)
	s.httpServer = &http.Server{Handler: s.mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != http.ErrServerClosed {
			log.Printf("Feed server error: %v", err)
		}
	}()

	log.Printf("Status feed listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the bound port, zero before Start.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Subscribers returns the number of connected dashboards.
func (s *Server) Subscribers() int {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	return len(s.subs)
}

// Publish broadcasts one monitor event to every subscriber. Slow
// subscribers drop frames rather than stall the monitor.
func (s *Server) Publish(ev latency.Event) {
	frame, err := NewFrame(TypeEvent, ev)
	if err != nil {
		log.Printf("Error encoding feed event: %v", err)
		return
	}

	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for sub := range s.subs {
		select {
		case sub.sendChan <- frame:
		default:
		}
	}
}

// handleWebSocket upgrades and serves one subscriber connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("Feed subscriber connected from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting subscriber during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	sub := &subscriber{
		conn:     conn,
		sendChan: make(chan Frame, 100),
	}

	s.subsMu.Lock()
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()

	defer func() {
		s.subsMu.Lock()
		delete(s.subs, sub)
		s.subsMu.Unlock()
		close(sub.sendChan)
		log.Printf("Feed subscriber disconnected")
	}()

	// Hello first so subscribers can identify the publisher.
	hello, err := NewFrame(TypeHello, Hello{
		Product:  version.Product,
		Version:  version.Version,
		Name:     s.config.Name,
		ServerID: s.serverID,
	})
	if err == nil {
		sub.sendChan <- hello
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.subscriberWriter(sub)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Feed read error: %v", err)
			}
			break
		}
		s.handleRequest(sub, data)
	}
}

// subscriberWriter drains the send channel onto the wire.
func (s *Server) subscriberWriter(sub *subscriber) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case frame, ok := <-sub.sendChan:
			if !ok {
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := sub.conn.WriteJSON(frame); err != nil {
				log.Printf("Error writing feed frame: %v", err)
				return
			}

		case <-ticker.C:
			if err := sub.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// handleRequest processes one frame from a subscriber.
func (s *Server) handleRequest(sub *subscriber, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("Error unmarshaling feed request: %v", err)
		return
	}

	switch frame.Type {
	case TypeSnapshotRequest:
		if s.config.Snapshot == nil {
			return
		}
		reply, err := NewFrame(TypeSnapshot, s.config.Snapshot())
		if err != nil {
			log.Printf("Error encoding snapshot: %v", err)
			return
		}
		select {
		case sub.sendChan <- reply:
		default:
			log.Printf("Subscriber send buffer full, dropping snapshot")
		}
	default:
		log.Printf("Unknown feed request type: %s", frame.Type)
	}
}

// Stop closes all subscriber connections and shuts the listener down.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.shutdownMu.Lock()
		s.isShutdown = true
		s.shutdownMu.Unlock()

		s.subsMu.RLock()
		for sub := range s.subs {
			sub.conn.Close()
		}
		s.subsMu.RUnlock()

		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.httpServer.Shutdown(ctx); err != nil {
				log.Printf("Feed server shutdown error: %v", err)
			}
		}

		s.wg.Wait()
		log.Printf("Status feed stopped")
	})
}
