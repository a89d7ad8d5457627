package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RPCHandler handles JSON-RPC method dispatch.
type RPCHandler interface {
	Handle(ctx context.Context, clientID, method string, params json.RawMessage) (any, error)
}

// CodedError is an error that carries its own JSON-RPC error code.
type CodedError interface {
	error
	RPCCode() int
}

// RPCObserver records each dispatched call.
type RPCObserver interface {
	ObserveRPC(method string, code int, elapsed time.Duration)
}

// Options configures the router. Nil fields are skipped.
type Options struct {
	Auth     func(http.Handler) http.Handler
	Metrics  http.Handler
	Observer RPCObserver
	Logger   *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	handler  RPCHandler
	observer RPCObserver
}

// NewServer creates an HTTP server router with middleware. Health and
// metrics are served without authentication.
func NewServer(handler RPCHandler, opts Options) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if opts.Logger != nil {
		r.Use(RequestLogger(opts.Logger))
	}

	srv := &Server{handler: handler, observer: opts.Observer}

	r.Get("/health", srv.handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}
		r.Post("/rpc", srv.handleRPC)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r.Body)
	if err != nil {
		code := ErrInvalidReq
		if errors.Is(err, ErrParse) {
			code = ErrParseCode
		}
		WriteError(w, nil, code, err.Error(), nil)
		return
	}

	clientID, ok := ClientFromContext(r.Context())
	if !ok {
		clientID = "anonymous"
	}

	start := time.Now()
	result, err := s.handler.Handle(r.Context(), clientID, req.Method, req.Params)
	code := 0
	defer func() {
		if s.observer != nil {
			s.observer.ObserveRPC(req.Method, code, time.Since(start))
		}
	}()

	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		code = ErrInternal
		var coded CodedError
		if errors.As(err, &coded) {
			code = coded.RPCCode()
		}
		WriteError(w, req.ID, code, err.Error(), nil)
		return
	}

	WriteResult(w, req.ID, result)
}
