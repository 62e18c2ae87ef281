package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"media-meta/internal/ai"
	"media-meta/internal/augmenter"
	"media-meta/internal/db"
)

// Store is the attachment persistence the handlers need.
type Store interface {
	GetAttachment(ctx context.Context, id int64) (*db.Attachment, error)
	SaveFields(ctx context.Context, id int64, alt, title, description string) error
	ApplyUpdate(ctx context.Context, id int64, u db.MetaUpdate) error
	Ping(ctx context.Context) error
}

// Gateway generates metadata and checks API keys.
type Gateway interface {
	Generate(ctx context.Context, req ai.GenerationRequest) (*ai.GenerationResult, error)
	TestConnection(ctx context.Context, apiKey string) error
}

type Options struct {
	Store   Store
	Gateway Gateway
	Auth    *Authenticator
	Logger  *slog.Logger
	// GenerateRate caps /ajax/generate calls per second; 0 disables it.
	GenerateRate float64
}

type Server struct {
	store   Store
	gateway Gateway
	auth    *Authenticator
	log     *slog.Logger
	limiter *rate.Limiter
	aug     *augmenter.Augmenter
	views   *augmenter.Registry
	handler http.Handler
}

func New(opts Options) (*Server, error) {
	if opts.Store == nil || opts.Gateway == nil || opts.Auth == nil {
		return nil, errors.New("server needs a store, a gateway and an authenticator")
	}
	s := &Server{
		store:   opts.Store,
		gateway: opts.Gateway,
		auth:    opts.Auth,
		log:     opts.Logger,
		aug:     augmenter.New(augmenter.Options{Scheduler: augmenter.Immediate{}}),
		views:   hostViews(),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if opts.GenerateRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.GenerateRate), 1)
	}
	s.aug.Extend(s.views)

	mux := http.NewServeMux()

	// AJAX handlers
	mux.Handle("/ajax/generate", s.auth.requireUser(http.HandlerFunc(s.handleGenerate)))
	mux.Handle("/ajax/test-connection", s.auth.requireUser(http.HandlerFunc(s.handleTestConnection)))
	mux.Handle("/ajax/nonce", s.auth.requireUser(http.HandlerFunc(s.handleNonce)))

	// API handlers
	mux.Handle("/api/attachments/{id}", s.auth.requireUser(http.HandlerFunc(s.handleAttachment)))
	mux.Handle("/media/{id}", s.auth.requireUser(http.HandlerFunc(s.handleMediaPage)))
	mux.HandleFunc("/healthz", s.handleHealth)

	s.handler = s.requestID(mux)
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

// Start serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", slog.String("addr", "http://localhost"+srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down server")
	return srv.Shutdown(shutdownCtx)
}

// writeJSON is a helper to write JSON responses.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// The response is likely already partially sent.
		slog.Error("error encoding JSON response", slog.Any("err", err))
	}
}

// writeError is a helper to write JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type messageData struct {
	Message string `json:"message"`
}

// sendSuccess and sendFailure write the {success, data} envelope the media
// UI expects.
func sendSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func sendFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Data: messageData{Message: message}})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
