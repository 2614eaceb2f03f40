// ABOUTME: chi HTTP server exposing POST /api/generate, the health probe and /metrics.
// ABOUTME: Validates prompts, calls the image model, pins the result and maps failures to API codes.
package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/2389-research/promptmint/ipfs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/openai/openai-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds the request body of /api/generate.
const maxBodyBytes = 64 << 10

// Pinner stores a generated image and its NFT metadata.
type Pinner interface {
	Upload(ctx context.Context, imageURL, prompt string) (ipfs.UploadResult, error)
	Configured() bool
}

// Server is the image generation HTTP API.
type Server struct {
	model  ImageModel
	pinner Pinner
	addr   string
	now    func() time.Time
	router chi.Router
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerClock overrides the clock used for error timestamps.
func WithServerClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// NewServer creates a server. A nil model means no API key was configured and
// every generate request fails with MISSING_API_TOKEN.
func NewServer(addr string, model ImageModel, pinner Pinner, opts ...ServerOption) *Server {
	s := &Server{
		model:  model,
		pinner: pinner,
		addr:   addr,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Printf("component=imagegen action=listen addr=%s", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Printf("component=imagegen action=shutdown addr=%s", s.addr)
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Post("/api/generate", s.handleGenerate)
	r.Get("/api/health", s.handleHealth)
	r.Head("/api/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.MethodNotAllowed(s.handleMethodNotAllowed)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Generation: s.model != nil,
		Pinning:    s.pinner != nil && s.pinner.Configured(),
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.fail(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed", nil)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.model == nil {
		s.fail(w, http.StatusInternalServerError, CodeMissingAPIToken,
			"Server configuration error: Missing API token", nil)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, CodeInvalidJSON, "Invalid JSON in request body", err.Error())
		return
	}
	if err := ValidatePrompt(req.Prompt); err != nil {
		s.fail(w, http.StatusBadRequest, CodeInvalidPrompt, err.Error(), nil)
		return
	}
	prompt := strings.TrimSpace(req.Prompt)

	imageURL, err := s.model.GenerateImage(r.Context(), prompt)
	if err != nil {
		status, code, msg := upstreamFailure(err)
		log.Printf("component=imagegen action=generate_failed code=%s err=%q", code, err.Error())
		s.fail(w, status, code, msg, err.Error())
		return
	}

	if s.pinner == nil || !s.pinner.Configured() {
		s.fail(w, http.StatusInternalServerError, CodeIPFSUploadFailed,
			"Failed to upload to IPFS", ipfs.ErrNotConfigured.Error())
		return
	}
	uploaded, err := s.pinner.Upload(r.Context(), imageURL, prompt)
	if err != nil {
		log.Printf("component=imagegen action=upload_failed err=%q", err.Error())
		s.fail(w, http.StatusInternalServerError, CodeIPFSUploadFailed, "Failed to upload to IPFS", err.Error())
		return
	}

	generateTotal.WithLabelValues("OK").Inc()
	log.Printf("component=imagegen action=generated token_uri=%s", uploaded.TokenURI)
	writeJSON(w, http.StatusOK, GenerateResponse{
		Success:    true,
		TokenURI:   uploaded.TokenURI,
		PreviewURL: uploaded.PreviewURL,
	})
}

// upstreamFailure maps an image model error onto an HTTP status and API code.
func upstreamFailure(err error) (int, ErrorCode, string) {
	switch {
	case errors.Is(err, ErrEmptyResult):
		return http.StatusInternalServerError, CodeGenerationFailed, "No image data received from generation service"
	case errors.Is(err, ErrInvalidImageURL):
		return http.StatusInternalServerError, CodeInvalidImageURL, "Invalid image URL received from generation service"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, CodeTimeout, "Request timed out. Please try again."
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return http.StatusUnauthorized, CodeAuthFailed, "Authentication failed"
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded. Please try again later."
		case apiErr.StatusCode == http.StatusRequestTimeout:
			return http.StatusRequestTimeout, CodeTimeout, "Request timed out. Please try again."
		case apiErr.Code == "content_policy_violation":
			return http.StatusBadRequest, CodeContentPolicyViolation, "Content policy violation"
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "401"):
		return http.StatusUnauthorized, CodeAuthFailed, "Authentication failed"
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded. Please try again later."
	case strings.Contains(msg, "timeout"):
		return http.StatusRequestTimeout, CodeTimeout, "Request timed out. Please try again."
	case strings.Contains(msg, "content policy") || strings.Contains(msg, "content_policy_violation"):
		return http.StatusBadRequest, CodeContentPolicyViolation, "Content policy violation"
	}
	return http.StatusInternalServerError, CodeInternalError, "Internal server error"
}

func (s *Server) fail(w http.ResponseWriter, status int, code ErrorCode, msg string, details any) {
	generateTotal.WithLabelValues(string(code)).Inc()
	writeJSON(w, status, APIError{
		Error:     msg,
		Code:      code,
		Details:   details,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("component=imagegen action=write_response_failed err=%v", err)
	}
}
