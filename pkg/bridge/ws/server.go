// Package ws serves broadcast telemetry to websocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"dronebridge/pkg/engine"
)

const shutdownTimeout = 5 * time.Second

// Health is the body of the health endpoint.
type Health struct {
	Status      string `json:"status"`
	Subscribers int    `json:"subscribers"`
	Source      string `json:"source"`
}

type Server struct {
	cfg      Config
	hub      *engine.Hub
	logger   logrus.FieldLogger
	upgrader websocket.Upgrader
	ln       net.Listener
}

func NewServer(cfg Config, hub *engine.Hub, logger logrus.FieldLogger) *Server {
	if logger == nil {
		discard := logrus.New()
		discard.SetLevel(logrus.PanicLevel)
		logger = discard
	}
	return &Server{
		cfg:    cfg.withDefaults(),
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

// Handler routes the websocket path and the health endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc(s.cfg.Path, s.handleWS)
	return mux
}

// Listen binds the configured address. Serve calls it when needed.
func (s *Server) Listen() error {
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("websocket listen %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	return nil
}

// Addr is the bound address, nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(s.ln)
	}()
	s.logger.WithFields(logrus.Fields{"addr": s.ln.Addr().String(), "path": s.cfg.Path}).Info("websocket server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.cfg.Path {
		http.NotFound(w, r)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	c := newClient(conn, s.cfg)
	s.logger.WithFields(logrus.Fields{"subscriber": c.ID(), "remote": r.RemoteAddr}).Debug("websocket connected")

	s.hub.Join(c)
	go c.writeLoop()
	c.readLoop()

	s.hub.Leave(c)
	_ = c.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := json.Marshal(Health{Status: "ok", Subscribers: s.hub.Len(), Source: s.cfg.Source})
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}
