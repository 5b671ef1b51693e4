// Package socket is the websocket transport of the relay. Each accepted
// websocket becomes one relay connection; frames are JSON envelopes carrying an
// event name and its data.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benmeehan/iot-relay/internal/relay"
	"github.com/benmeehan/iot-relay/internal/utils"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// StatusProvider reports relay state for the health endpoint.
type StatusProvider interface {
	Snapshot() relay.Snapshot
}

// Options configures a Server.
type Options struct {
	ListenAddr     string
	WebsocketPath  string
	AllowedOrigins []string
	SendQueueSize  int
	WriteTimeout   time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64

	// MetricsPath and MetricsHandler add a metrics route when both are set.
	MetricsPath    string
	MetricsHandler http.Handler
}

// Server accepts websocket peers and connects them to the relay.
type Server struct {
	opts     Options
	handler  relay.EventHandler
	status   StatusProvider
	recorder relay.Recorder
	logger   zerolog.Logger

	upgrader   websocket.Upgrader
	origins    map[string]struct{}
	sessions   cmap.ConcurrentMap[string, *session]
	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewServer builds a Server. It does not listen until Start.
func NewServer(opts Options, handler relay.EventHandler, status StatusProvider, recorder relay.Recorder, logger zerolog.Logger) *Server {
	s := &Server{
		opts:     opts,
		handler:  handler,
		status:   status,
		recorder: recorder,
		logger:   logger.With().Str("component", "websocket").Logger(),
		sessions: cmap.New[*session](),
		origins:  utils.SliceToSet(opts.AllowedOrigins),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Router returns the HTTP routes served by the transport.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc(s.opts.WebsocketPath, s.handleWebsocket)
	if s.opts.MetricsPath != "" && s.opts.MetricsHandler != nil {
		router.Handle(s.opts.MetricsPath, s.opts.MetricsHandler).Methods(http.MethodGet)
	}

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
	)(router)
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("websocket server is already running")
	}

	ln, err := net.Listen("tcp", s.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.ListenAddr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server stopped unexpectedly")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Str("path", s.opts.WebsocketPath).Msg("Server listening")
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the HTTP server down and closes every websocket. Each closed
// websocket is reported to the relay as a disconnect.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.New("websocket server is not running")
	}
	s.running = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)

	for item := range s.sessions.IterBuffered() {
		item.Val.close(websocket.CloseGoingAway, "server shutting down")
	}
	s.wg.Wait()

	if err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	s.logger.Info().Msg("Server stopped")
	return nil
}

// handleWebsocket upgrades r and runs the session until the peer leaves.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("origin", r.Header.Get("Origin")).
			Msg("Failed to upgrade to websocket")
		return
	}

	id := relay.ConnID(uuid.NewString())
	sess := newSession(id, conn, s.opts, s.logger)

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		sess.close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	s.sessions.Set(string(id), sess)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.logger.Debug().Str("conn_id", string(id)).Str("remote_addr", r.RemoteAddr).Msg("Websocket established")
	s.handler.Connected(id, sess)

	go sess.writePump()
	sess.readPump(s.handler, s.recorder)

	sess.close(websocket.CloseNormalClosure, "")
	s.sessions.Remove(string(id))
	s.handler.Disconnected(id)
}

// SessionCount returns the number of open websockets.
func (s *Server) SessionCount() int {
	return s.sessions.Count()
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Environment Control relay is running."))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status.Snapshot()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode health response")
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients such as the ESP32 send no Origin
		return true
	}
	if _, ok := s.origins["*"]; ok {
		return true
	}
	_, ok := s.origins[origin]
	return ok
}
