package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zsprackett/agent-console/internal/db"
	"github.com/zsprackett/agent-console/internal/events"
	"github.com/zsprackett/agent-console/internal/notify"
)

// AuthConfig holds token settings for the hub.
type AuthConfig struct {
	JWTSecret      string
	AccessTokenTTL time.Duration
}

type Config struct {
	Port        int
	Host        string
	TLS         bool
	TLSCacheDir string
	// TLSHosts are extra names, besides loopback, the hostname and Host,
	// that the self-signed certificate must cover.
	TLSHosts []string
	Auth     AuthConfig
}

// Server is the broadcast hub. Operator consoles join a room per user; each
// user has at most one authenticated agent.
type Server struct {
	store    *db.DB
	cfg      Config
	notifier *notify.Notifier
	logger   *slog.Logger
	rooms    *rooms

	mu     sync.Mutex
	agents map[string]*client
}

func New(store *db.DB, cfg Config, notifier *notify.Notifier, logger *slog.Logger) *Server {
	if cfg.Auth.AccessTokenTTL <= 0 {
		cfg.Auth.AccessTokenTTL = 720 * time.Hour
	}
	return &Server{
		store:    store,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		rooms:    newRooms(logger),
		agents:   make(map[string]*client),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /ws/agent", s.handleAgentSocket)
	mux.Handle("GET /ws", jwtMiddleware(s.cfg.Auth.JWTSecret, http.HandlerFunc(s.handleOperatorSocket)))
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	if s.cfg.TLS {
		tlsCfg, err := SelfSignedTLS(s.cfg.TLSCacheDir, certHosts(s.cfg.Host, s.cfg.TLSHosts))
		if err != nil {
			return fmt.Errorf("tls: %w", err)
		}
		srv.TLSConfig = tlsCfg
		s.logger.Info("webserver: self-signed certificate; point clients' tlsCAFile at it",
			"cert", CertPath(s.cfg.TLSCacheDir))
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webserver: listening", "addr", addr, "tls", s.cfg.TLS)
		if s.cfg.TLS {
			errCh <- srv.ListenAndServeTLS("", "")
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("webserver: shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	agents := len(s.agents)
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "agents": agents})
}

// agentStatusFor reports whether user currently has an authenticated agent.
func (s *Server) agentStatusFor(user string) events.StatusPayload {
	s.mu.Lock()
	_, ok := s.agents[user]
	s.mu.Unlock()
	if ok {
		return events.StatusPayload{Status: events.StatusConnected, Message: "Agent connected."}
	}
	return events.StatusPayload{Status: events.StatusDisconnected, Message: "Agent not connected."}
}

func (s *Server) agentFor(user string) *client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agents[user]
}

// registerAgent makes c the agent for user, returning any agent it replaced.
func (s *Server) registerAgent(user string, c *client) *client {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.agents[user]
	s.agents[user] = c
	if prev == c {
		return nil
	}
	return prev
}

// unregisterAgent removes c if it is still the registered agent for user.
func (s *Server) unregisterAgent(user string, c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agents[user] != c {
		return false
	}
	delete(s.agents, user)
	return true
}
