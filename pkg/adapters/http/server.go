package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Engine defines the batch controls exposed over HTTP.
type Engine interface {
	Start(ctx context.Context, req domain.BatchRequest) (*session.Session, error)
	Cancel() error
	Progress() domain.Progress
	Subscribe() (<-chan domain.Progress, func())
	Token(ctx context.Context, id int64) (*domain.TokenMetadata, error)
	Tokens(ctx context.Context) ([]int64, error)
	Preview(ctx context.Context, req domain.PreviewRequest) (*domain.Token, error)
}

// Server implements ServerInterface over an Engine.
type Server struct {
	Engine Engine
	logger *slog.Logger
}

// Ensure Server implements ServerInterface
var _ ServerInterface = (*Server)(nil)

type options struct {
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the handler.
type Option func(*options)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics mounts a Prometheus handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(o *options) {
		o.metrics = h
	}
}

// NewHandler creates a new HTTP handler for the engine.
// It panics if the embedded OpenAPI document is invalid.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	doc, err := GetSwagger()
	if err != nil {
		panic(err)
	}
	validate, err := requestValidator(doc, o.logger)
	if err != nil {
		panic(err)
	}

	server := &Server{Engine: engine, logger: o.logger}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	if o.metrics != nil {
		r.Handle("/metrics", o.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(validate)
		HandlerFromMux(server, r)
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartBatch handles the POST /generate request.
func (s *Server) StartBatch(w http.ResponseWriter, r *http.Request) {
	var req domain.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.OutWidth > 0 {
		req.OutWidth = domain.ClampOutputSize(req.OutWidth)
	}
	if req.OutHeight > 0 {
		req.OutHeight = domain.ClampOutputSize(req.OutHeight)
	}

	sess, err := s.Engine.Start(r.Context(), req)
	if err != nil {
		s.logger.Warn("Start failed", "err", err)
		writeError(w, statusOf(err), domain.CodeOf(err), err)
		return
	}
	s.logger.Info("Batch accepted", "batch_id", sess.ID(), "count", req.Count)
	writeJSON(w, http.StatusAccepted, BatchAccepted{BatchID: sess.ID()})
}

// CancelBatch handles the POST /generate/stop request.
func (s *Server) CancelBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Cancel(); err != nil {
		writeError(w, statusOf(err), "", err)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Progress())
}

// GetProgress handles the GET /progress request.
func (s *Server) GetProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Progress())
}

// SubscribeEvents handles the GET /events request (SSE).
// The current snapshot is sent first; the stream closes once a terminal
// status has been delivered or the client goes away. With follow=true the
// stream stays open across batches.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "", errors.New("streaming not supported"))
		return
	}

	updates, unsubscribe := s.Engine.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(p domain.Progress) {
		data, err := json.Marshal(p)
		if err != nil {
			s.logger.Error("SSE encode failed", "err", err)
			return
		}
		fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
		flusher.Flush()
	}

	follow := r.URL.Query().Get("follow") == "true"
	current := s.Engine.Progress()
	send(current)
	if current.Status.Terminal() && !follow {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case p := <-updates:
			send(p)
			if p.Status.Terminal() && !follow {
				return
			}
		}
	}
}

// ListTokens handles the GET /tokens request.
func (s *Server) ListTokens(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Tokens(r.Context())
	if err != nil {
		writeError(w, statusOf(err), "", err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetToken handles the GET /tokens/{tokenId} request.
func (s *Server) GetToken(w http.ResponseWriter, r *http.Request, tokenID int64) {
	md, err := s.Engine.Token(r.Context(), tokenID)
	if err != nil {
		writeError(w, statusOf(err), "", err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

// PreviewToken handles the POST /preview request.
func (s *Server) PreviewToken(w http.ResponseWriter, r *http.Request) {
	var req domain.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "", fmt.Errorf("invalid request body: %w", err))
		return
	}
	req.Size = domain.ClampOutputSize(req.Size)

	tok, err := s.Engine.Preview(r.Context(), req)
	if err != nil {
		s.logger.Warn("Preview failed", "err", err)
		writeError(w, statusOf(err), domain.CodeOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, Preview{ComboKey: tok.Key, Image: tok.Image, Metadata: tok.Metadata})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := GetSwagger(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "strata-http",
		"version":     strata.Version,
		"api_version": apiVersion,
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrBatchRunning):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoBatch), errors.Is(err, domain.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAssetRootMissing), errors.Is(err, domain.ErrMalformedConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUniqueExhausted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code domain.Code, err error) {
	writeJSON(w, status, Error{Error: err.Error(), Code: code})
}
