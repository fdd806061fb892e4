// Package server exposes roof measurement and raster decoding over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pspoerri/roofmeasure/internal/area"
	"github.com/pspoerri/roofmeasure/internal/fetch"
	"github.com/pspoerri/roofmeasure/internal/geotiff"
	"github.com/pspoerri/roofmeasure/internal/metrics"
	"github.com/pspoerri/roofmeasure/internal/pitch"
)

// Fetcher downloads remote rasters. *fetch.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Raster, error)
}

// Options configures a Server.
type Options struct {
	Version string
	// Fetcher serves /v1/raster/decode requests by URL; nil disables them.
	Fetcher Fetcher

	// Format and Quality select the default image encoding of decoded
	// rasters.
	Format  string
	Quality int

	AreaMethod area.Method
	// DefaultPitch and DefaultWaste apply when a request omits them. The
	// zero DefaultPitch is pitch.Flat.
	DefaultPitch pitch.Category
	DefaultWaste int

	// MaxBodyBytes bounds request bodies, including uploaded rasters.
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	opts      Options
	log       *slog.Logger
	startTime time.Time
}

// New creates a server. Zero options fall back to PNG output, the orb area
// method and a 64 MiB body limit.
func New(opts Options) *Server {
	if opts.Format == "" {
		opts.Format = "png"
	}
	if opts.Quality == 0 {
		opts.Quality = 85
	}
	if opts.AreaMethod == "" {
		opts.AreaMethod = area.MethodOrb
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{opts: opts, log: opts.Logger, startTime: time.Now()}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.limitBody)
		r.Post("/area", s.handle(s.computeArea))
		r.Post("/adjust", s.handle(s.adjust))
		r.Post("/estimate", s.handle(s.estimate))
		r.Post("/raster/decode", s.handle(s.decodeRaster))
	})
	return r
}

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Uptime    int       `json:"uptime_seconds"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Version:   s.opts.Version,
		Uptime:    int(time.Since(s.startTime).Seconds()),
		Timestamp: time.Now().UTC(),
	})
}

type ctxKey int

const requestIDKey ctxKey = iota

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// requestID propagates the caller's X-Request-ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestIDFrom returns the request ID stored in ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if ww.Status() >= 500 {
			level = slog.LevelError
		}
		s.log.LogAttrs(r.Context(), level, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote", r.RemoteAddr),
			slog.String("request_id", RequestIDFrom(r.Context())),
		)
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// APIError is the JSON body of every error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// statusError attaches an HTTP status and error code to an error.
type statusError struct {
	status int
	code   string
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &statusError{status: http.StatusBadRequest, code: "bad_request", err: err}
}

func badGateway(err error) error {
	return &statusError{status: http.StatusBadGateway, code: "upstream_error", err: err}
}

// handle adapts a handler that returns an error into an http.HandlerFunc.
func (s *Server) handle(h func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.writeError(w, r, err)
		}
	}
}

// writeError maps err to a status code. A request whose client went away
// gets no response at all.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		s.log.Debug("request cancelled", "path", r.URL.Path, "request_id", RequestIDFrom(r.Context()))
		return
	}

	resp := APIError{
		Status:    http.StatusInternalServerError,
		Code:      "internal_error",
		Message:   "internal error",
		RequestID: RequestIDFrom(r.Context()),
	}
	var se *statusError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &se):
		resp.Status, resp.Code, resp.Message = se.status, se.code, se.Error()
	case errors.As(err, &tooLarge):
		resp.Status, resp.Code, resp.Message = http.StatusRequestEntityTooLarge, "body_too_large", err.Error()
	case errors.Is(err, geotiff.ErrMalformedRaster):
		resp.Status, resp.Code, resp.Message = http.StatusUnprocessableEntity, "malformed_raster", err.Error()
	case errors.Is(err, geotiff.ErrUnsupportedBandLayout):
		resp.Status, resp.Code, resp.Message = http.StatusUnprocessableEntity, "unsupported_band_layout", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		resp.Status, resp.Code, resp.Message = http.StatusGatewayTimeout, "timeout", "request timed out"
	default:
		s.log.Error("request failed", "path", r.URL.Path, "error", err, "request_id", resp.RequestID)
	}
	s.writeJSON(w, resp.Status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encoding response", "error", err)
	}
}

// warningStrings renders recovered conditions for JSON responses. It never
// returns nil so that "warnings" is always an array.
func warningStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}
