package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dserrors "github.com/systmms/dsops-rotator/internal/errors"
	"github.com/systmms/dsops-rotator/internal/logging"
	"github.com/systmms/dsops-rotator/internal/metrics"
	"github.com/systmms/dsops-rotator/pkg/rotation"
	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

// maxEventBytes bounds the request bodies of POST /rotate and POST /start.
const maxEventBytes = 64 << 10

// Handler runs one rotation step. *rotation.Orchestrator satisfies it.
type Handler interface {
	Handle(ctx context.Context, req rotation.Request) error
}

// Config holds configuration for the HTTP server.
type Config struct {
	// Addr is the address to listen on.
	Addr string

	// MetricsEnabled mounts the Prometheus handler at MetricsPath.
	MetricsEnabled bool
	MetricsPath    string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It bounds a whole rotation step, target calls included.
	WriteTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		MetricsPath:  "/metrics",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
}

// Server exposes the rotation protocol over HTTP: POST /rotate takes the
// same JSON event a managed rotation service would send.
type Server struct {
	config  Config
	handler Handler
	starter secretstore.Starter
	logger  *logging.Logger
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithStarter enables POST /start, which registers a new version token on
// stores that do not have a managed rotation service of their own.
func WithStarter(st secretstore.Starter) Option {
	return func(s *Server) {
		s.starter = st
	}
}

// Response is the JSON body returned by POST /rotate.
type Response struct {
	Status  string `json:"status"`
	Outcome string `json:"outcome"`
	Step    string `json:"step,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StartRequest is the JSON body accepted by POST /start. An empty
// ClientRequestToken is replaced by a generated one.
type StartRequest struct {
	SecretID           string `json:"SecretId"`
	ClientRequestToken string `json:"ClientRequestToken,omitempty"`
}

// StartResponse is the JSON body returned by POST /start.
type StartResponse struct {
	Status             string `json:"status"`
	SecretID           string `json:"SecretId,omitempty"`
	ClientRequestToken string `json:"ClientRequestToken,omitempty"`
	Error              string `json:"error,omitempty"`
}

// New creates a new server.
func New(config Config, handler Handler, logger *logging.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		config:  config,
		handler: handler,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the server's HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rotate", s.handleRotate)
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if s.config.MetricsEnabled {
		metrics.InitMetrics()
		mux.Handle("GET "+s.config.MetricsPath, promhttp.Handler())
	}
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s.Routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()
	s.logger.Info("listening on %s", ln.Addr())

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
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, readStatus(err), Response{Status: "error", Outcome: "bad_request", Error: err.Error()})
		return
	}

	req, err := rotation.ParseEvent(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Status: "error", Outcome: "bad_request", Error: err.Error()})
		return
	}

	err = s.handler.Handle(r.Context(), req)
	resp := Response{Status: "ok", Outcome: rotation.Outcome(err), Step: req.Step.String()}
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
	}
	writeJSON(w, StatusFor(err), resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.starter == nil {
		writeJSON(w, http.StatusNotImplemented, StartResponse{
			Status: "error",
			Error:  "this store registers rotation tokens through its managed rotation service",
		})
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, readStatus(err), StartResponse{Status: "error", Error: err.Error()})
		return
	}
	var req StartRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, StartResponse{Status: "error", Error: "invalid start request: " + err.Error()})
		return
	}
	if req.SecretID == "" {
		writeJSON(w, http.StatusBadRequest, StartResponse{Status: "error", Error: "invalid start request: SecretId is required"})
		return
	}
	if req.ClientRequestToken == "" {
		req.ClientRequestToken = uuid.NewString()
	}

	log := s.logger.With("secret", req.SecretID).With("token", req.ClientRequestToken)
	if err := s.starter.StartRotation(r.Context(), req.SecretID, req.ClientRequestToken); err != nil {
		log.Error("failed to register rotation token: %v", err)
		writeJSON(w, StatusFor(err), StartResponse{Status: "error", SecretID: req.SecretID, Error: err.Error()})
		return
	}
	log.Info("registered rotation token")
	writeJSON(w, http.StatusOK, StartResponse{Status: "ok", SecretID: req.SecretID, ClientRequestToken: req.ClientRequestToken})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
}

// readStatus reports 413 for bodies over the limit and 400 for any other
// read failure.
func readStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// StatusFor maps a Handle error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, rotation.ErrUnknownStep):
		return http.StatusBadRequest
	case errors.Is(err, rotation.ErrSecretNotRotatable), errors.Is(err, rotation.ErrInvalidToken):
		return http.StatusConflict
	case errors.Is(err, rotation.ErrVerificationFailed):
		return http.StatusUnprocessableEntity
	case secretstore.IsNotFound(err):
		return http.StatusNotFound
	case secretstore.IsAuth(err):
		return http.StatusBadGateway
	case dserrors.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
