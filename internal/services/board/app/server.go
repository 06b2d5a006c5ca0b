// Package server hosts the board HTTP/WebSocket process: the transport
// boundary for retrospective sessions. It resolves cookie identity, routes
// command frames to the session registry, and streams broadcast events back
// to each connection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/retroboard/internal/platform/timeouts"
	"github.com/louisbranch/retroboard/internal/retro/hub"
	"github.com/louisbranch/retroboard/internal/retro/presence"
	"github.com/louisbranch/retroboard/internal/retro/registry"
	"github.com/louisbranch/retroboard/internal/retro/storage/sqlite"
)

const (
	accountCookieName = "rb_account"

	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3

	maxReflectionContentRunes = 2000
	maxSurnameRunes           = 64
)

// Config defines the inputs for the board transport boundary.
type Config struct {
	HTTPAddr          string
	StoragePath       string
	InactivityGrace   time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the board HTTP/WebSocket process. Session state lives in the
// registry; the server stays transport-only.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           *sqlite.Store
	tracker         *presence.Tracker
}

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// wsSession is one connection's view of the world: resolved identity plus
// the retrospective it joined, if any.
type wsSession struct {
	mu            sync.Mutex
	accountID     string
	peer          *wsPeer
	retroID       string
	participantID string
	sub           *hub.Subscription
	writerDone    chan struct{}
}

func newWSSession(accountID string, peer *wsPeer) *wsSession {
	return &wsSession{accountID: accountID, peer: peer}
}

func (s *wsSession) setJoined(retroID, participantID string, sub *hub.Subscription, writerDone chan struct{}) (*hub.Subscription, chan struct{}) {
	s.mu.Lock()
	previousSub, previousDone := s.sub, s.writerDone
	s.retroID = retroID
	s.participantID = participantID
	s.sub = sub
	s.writerDone = writerDone
	s.mu.Unlock()
	return previousSub, previousDone
}

func (s *wsSession) joined() (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retroID, s.participantID, s.participantID != ""
}

func (s *wsSession) subscription() (*hub.Subscription, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub, s.writerDone
}

// NewServer builds a configured board server backed by SQLite storage.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.StoragePath) == "" {
		return nil, errors.New("storage path is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	store, err := sqlite.Open(config.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open board storage: %w", err)
	}

	broadcast := hub.New()
	sessions := registry.New(store, broadcast, nil, nil)
	tracker := presence.NewTracker(sessions, config.InactivityGrace)

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           newHandler(sessions, broadcast, tracker),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		store:           store,
		tracker:         tracker,
	}, nil
}

// Run creates and serves a board server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init board server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve board: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("board server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("board server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.tracker != nil {
		s.tracker.Stop()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close board storage: %v", err)
		}
	}
}
