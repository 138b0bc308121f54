package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/alpaca-assistant/gateway/internal/config"
	"github.com/alpaca-assistant/gateway/internal/session"
)

// Server exposes the websocket gateway plus the read-only HTTP endpoints.
// The design is single-session: at most one live client session at a time,
// and a new connection sweeps away whatever the previous one left behind.
type Server struct {
	cfg            *config.Config
	snapshot       *config.Config
	runner         session.Runner
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string

	mu     sync.Mutex
	active *session.Session
}

// NewServer wires the gateway. cfg is the effective configuration (never
// nil); runner may be nil when the assistant backend failed to initialize, in
// which case connections are answered with a backend-unavailable error.
func NewServer(cfg *config.Config, runner session.Runner) *Server {
	s := &Server{
		cfg:            cfg,
		runner:         runner,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      cfg.Server.AuthToken,
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// SetConfigSnapshot records the configuration captured at startup for the
// /config endpoint. A nil snapshot (startup config failed) makes the endpoint
// report service-unavailable. Must be called before SetupRoutes.
func (s *Server) SetConfigSnapshot(snapshot *config.Config) {
	s.snapshot = snapshot
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/healthz", s.handleHealth)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	remote := r.RemoteAddr
	log.Printf("WebSocket client connected: %s", remote)

	// Single-session design: a remnant session from a previous connection is
	// torn down before the new one starts.
	s.mu.Lock()
	prev := s.active
	s.mu.Unlock()
	if prev != nil {
		log.Printf("Warning: tearing down remnant session %s from previous connection", prev.ID)
		prev.Teardown()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newClient(conn)
	sess := session.New(ctx, s.runner, c, session.Options{
		Defaults: session.Params{
			ListenTimeout: s.cfg.Interaction.ListenTimeout,
			PhraseLimit:   s.cfg.Interaction.PhraseLimit,
			Duration:      s.cfg.Interaction.Duration,
		},
		GracePeriod: s.cfg.Interaction.GracePeriod,
	})

	s.mu.Lock()
	s.active = sess
	s.mu.Unlock()

	defer func() {
		sess.Teardown()
		c.close()
		s.mu.Lock()
		if s.active == sess {
			s.active = nil
		}
		s.mu.Unlock()
		log.Printf("WebSocket cleanup complete for %s", remote)
	}()

	if s.runner == nil {
		_ = c.Send(session.ErrorEvent(session.ReasonBackendUnavailable,
			"assistant not initialized on server").WithState(session.PhaseError))
		return
	}

	if err := sess.GreetClient(ctx); err != nil {
		log.Printf("[%s] greeting generation failed: %v", remote, err)
		_ = c.Send(session.ErrorEvent(session.ReasonInternalError,
			"failed to generate initial greeting").WithState(session.PhaseError))
		return
	}

	s.commandLoop(conn, c, sess, remote)
}

// commandLoop reads client commands one at a time and dispatches each fully
// before reading the next. That single-reader discipline is what keeps the
// session's state transitions race-free: commands only ever run concurrently
// with the worker/relay they spawned, never with each other. The loop exits
// on disconnect or on a fatal protocol error; the caller tears down.
func (s *Server) commandLoop(conn *websocket.Conn, c *client, sess *session.Session, remote string) {
	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[%s] client disconnected", remote)
			} else {
				log.Printf("[%s] read error: %v", remote, err)
			}
			return
		}

		if cmd.UserName != "" {
			sess.SetUserName(cmd.UserName)
		}

		switch cmd.Action {
		case ActionStart:
			s.dispatchStart(c, sess, cmd)
		case ActionStop:
			sess.HandleStop()
		case ActionSendText:
			sess.HandleSendText(cmd.Text)
		case ActionInterrupt:
			sess.HandleInterrupt()
		case ActionToggleOption:
			sess.HandleToggleOption(cmd.Enabled != nil && *cmd.Enabled)
		default:
			_ = c.Send(session.ErrorEvent(session.ReasonUnknownAction,
				fmt.Sprintf("unknown action: %q", cmd.Action)))
		}
	}
}

// dispatchStart routes the start command's mode. Only voice spawns the
// worker/relay pair; text interactions go through send_text.
func (s *Server) dispatchStart(c *client, sess *session.Session, cmd Command) {
	mode := cmd.Mode
	if mode == "" {
		mode = ModeVoice
	}
	switch mode {
	case ModeVoice:
		sess.HandleStart(cmd.Params.overrides())
	case ModeText:
		_ = c.Send(session.InfoEvent("use the send_text action for text interactions"))
	default:
		_ = c.Send(session.ErrorEvent(session.ReasonConflict,
			fmt.Sprintf("unsupported start mode: %q", mode)).WithState(session.PhaseError))
	}
}

// handleConfig serves the configuration snapshot captured at startup, or 503
// when startup configuration failed to load.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if s.snapshot == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "configuration not available; server may not have started correctly",
		})
		return
	}
	json.NewEncoder(w).Encode(s.snapshot)
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-Gateway-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Gateway listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
