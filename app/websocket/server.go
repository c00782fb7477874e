// Package websocket is the order feed server: order terminals push payloads
// over REST, kitchen displays subscribe over WebSocket, and the daemon
// announces itself on the local network over mDNS.
package websocket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"receiptd/app/config"
	"receiptd/app/database"
	"receiptd/app/services"
)

// MessageType tags feed messages.
type MessageType string

const (
	TypeOrderNew     MessageType = "order_new"
	TypeOrderUpdate  MessageType = "order_update"
	TypePrintResult  MessageType = "print_result"
	TypeHeartbeat    MessageType = "heartbeat"
)

// Message is one feed event.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 10
)

// Client is one connected feed subscriber.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
	addr   string
}

// Server serves the REST API and the WebSocket feed.
type Server struct {
	store   *database.Store
	printer *services.PrintService
	cfg     config.ServerConfig
	log     *zap.Logger

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	upgrader websocket.Upgrader
	httpSrv  *http.Server
	mdns     *zeroconf.Server
	mu       sync.RWMutex
}

// NewServer wires the feed server around the store and print service.
func NewServer(store *database.Store, printer *services.PrintService, cfg config.ServerConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		store:      store,
		printer:    printer,
		cfg:        cfg,
		log:        log,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Terminals live on the LAN; origin checks add nothing here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start runs the listener until Stop is called. It blocks.
func (s *Server) Start() error {
	go s.run()
	if s.cfg.Announce {
		s.startMDNS()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	s.registerRESTRoutes(mux)

	s.httpSrv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.log.Info("feed server listening", zap.String("addr", s.cfg.Addr))
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the listener, the mDNS announcement and all clients down.
func (s *Server) Stop() {
	close(s.done)
	if s.mdns != nil {
		s.mdns.Shutdown()
	}
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(ctx)
	}
}

// startMDNS announces the service so terminals find the daemon without
// hardcoded addresses.
func (s *Server) startMDNS() {
	port := portOf(s.cfg.Addr)
	srv, err := zeroconf.Register(
		s.cfg.ServiceName, "_receiptd._tcp", "local.", port,
		[]string{"version=1"}, nil,
	)
	if err != nil {
		s.log.Warn("mdns announce failed", zap.Error(err))
		return
	}
	s.mdns = srv
	s.log.Info("mdns service announced",
		zap.String("name", s.cfg.ServiceName), zap.Int("port", port))
}

func portOf(addr string) int {
	if _, portStr, err := net.SplitHostPort(addr); err == nil {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			return port
		}
	}
	return 8931
}

// run is the hub loop: client lifecycle plus fan-out.
func (s *Server) run() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case c := <-s.register:
			s.mu.Lock()
			s.clients[c] = struct{}{}
			n := len(s.clients)
			s.mu.Unlock()
			s.log.Info("feed client connected", zap.String("addr", c.addr), zap.Int("clients", n))

		case c := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[c]; ok {
				delete(s.clients, c)
				close(c.send)
			}
			n := len(s.clients)
			s.mu.Unlock()
			s.log.Info("feed client disconnected", zap.String("addr", c.addr), zap.Int("clients", n))

		case payload := <-s.broadcast:
			s.mu.Lock()
			for c := range s.clients {
				select {
				case c.send <- payload:
				default:
					// Slow consumer; drop it rather than stall the hub.
					delete(s.clients, c)
					close(c.send)
				}
			}
			s.mu.Unlock()

		case <-ticker.C:
			s.Broadcast(Message{Type: TypeHeartbeat, Timestamp: time.Now()})

		case <-s.done:
			s.mu.Lock()
			for c := range s.clients {
				close(c.send)
				c.conn.Close()
			}
			s.clients = make(map[*Client]struct{})
			s.mu.Unlock()
			return
		}
	}
}

// Broadcast sends one message to every connected client.
func (s *Server) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("encode broadcast", zap.Error(err))
		return
	}
	select {
	case s.broadcast <- payload:
	case <-s.done:
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 32),
		server: s,
		addr:   r.RemoteAddr,
	}
	s.register <- client
	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	clients := len(s.clients)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": clients,
	})
}

// readPump drains the connection; the feed is one-directional, so inbound
// frames only matter for the close handshake and pong bookkeeping.
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
