package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/websocket"

	"chatrelay/pkg/history"
)

// debugLog carries per-connection noise; discarded unless enabled.
var debugLog = log.New(io.Discard, "DEBUG: ", log.LstdFlags)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Accept all origins; TLS/origin policy is a deployment concern.
		return true
	},
}

// Server ties the registry, auth gate, hub and history store to a single
// websocket listening endpoint.
type Server struct {
	config   ServerConfig
	registry *Registry
	hub      *Hub
	auth     *AuthGate
	store    *history.Store
	metrics  *Metrics

	listener   net.Listener
	httpServer *http.Server
	shutdown   chan struct{}
	wg         sync.WaitGroup

	// All accepted connections, including ones still awaiting login, so
	// Stop can close connections the registry has never seen.
	connMu sync.Mutex
	conns  map[*SafeConn]struct{}
}

// NewServer creates a server instance and loads the durable history.
func NewServer(config ServerConfig) *Server {
	metrics := NewMetrics()
	registry := NewRegistry(metrics)

	store := history.NewStore(config.HistoryPath, config.HistoryLimit)
	store.Load()
	log.Printf("Loaded %d messages from history file %s", store.Len(), config.HistoryPath)
	metrics.RecordHistorySize(store.Len())

	return &Server{
		config:   config,
		registry: registry,
		hub:      NewHub(registry, metrics),
		auth:     NewAuthGate(registry),
		store:    store,
		metrics:  metrics,
		shutdown: make(chan struct{}),
		conns:    make(map[*SafeConn]struct{}),
	}
}

// EnableDebugLogging turns on per-connection debug output.
func (s *Server) EnableDebugLogging() {
	debugLog.SetOutput(os.Stderr)
}

// Routes returns the HTTP handler serving the websocket endpoint, health
// check and metrics.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Start begins listening on all interfaces at the configured port. It
// returns once the listener is bound; serving continues on background
// goroutines until Stop.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{Handler: s.Routes()}

	log.Printf("Listening on %s (ws://0.0.0.0:%d/ws)", addr, s.config.Port)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully stops the server: stop accepting, close live sessions,
// wait for their goroutines to finish.
func (s *Server) Stop() error {
	close(s.shutdown)

	var err error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		err = s.httpServer.Shutdown(ctx)
	}

	// Empty the registry first so closing sessions do not announce
	// departures to peers that are being torn down anyway.
	s.registry.CloseAll()

	s.connMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return err
}

// OnlineCount returns the number of authenticated sessions.
func (s *Server) OnlineCount() int {
	return s.registry.Count()
}

// HandleWebSocket upgrades an HTTP request and runs the session state
// machine until the connection closes.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	if s.config.MaxMessageBytes > 0 {
		ws.SetReadLimit(s.config.MaxMessageBytes)
	}

	select {
	case <-s.shutdown:
		ws.Close()
		return
	default:
	}

	conn := NewSafeConn(ws)
	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()

	handler := NewSessionHandler(conn, s.registry, s.hub, s.auth, s.store, s.config, s.metrics)
	debugLog.Printf("New connection from %s (session %s)", conn.RemoteAddr(), handler.id)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.connMu.Lock()
			delete(s.conns, conn)
			s.connMu.Unlock()
		}()
		handler.Run()
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "ok: %d online\n", s.registry.Count())
}
