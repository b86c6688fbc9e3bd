// Package server exposes report generation over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ogulcanaydogan/perfreport/internal/config"
	"github.com/ogulcanaydogan/perfreport/internal/hash"
	"github.com/ogulcanaydogan/perfreport/internal/parse"
	"github.com/ogulcanaydogan/perfreport/internal/pipeline"
	"github.com/ogulcanaydogan/perfreport/internal/report"
	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

const maxBodyBytes = 10 * 1024 * 1024 // 10 MB

// Header names set on every generated report response.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderTier      = "X-Health-Tier"
)

type Config struct {
	Addr       string
	Defaults   config.Defaults
	SchemaPath string
	// MaxBodyBytes caps request bodies; zero means 10 MB.
	MaxBodyBytes int64
}

func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		Defaults:     config.Default(),
		MaxBodyBytes: maxBodyBytes,
	}
}

type Server struct {
	cfg      Config
	logger   *zap.Logger
	router   chi.Router
	group    singleflight.Group
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

type rendered struct {
	body []byte
	tier types.Tier
}

type errorResponse struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
	RequestID  string   `json:"request_id"`
}

type requestIDKey struct{}

func New(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = maxBodyBytes
	}
	if cfg.Defaults == (config.Defaults{}) {
		cfg.Defaults = config.Default()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		router:   chi.NewRouter(),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perfreport",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Report generation requests by response status.",
		}, []string{"status"}),
	}
	s.registry.MustRegister(s.requests)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Get("/healthz", HealthHandler().ServeHTTP)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.router.With(s.requestID, s.instrument).Post("/v1/reports", s.handleReports)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the server's own metrics registry.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// HealthHandler returns an HTTP handler for liveness and readiness probes.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.requests.WithLabelValues(strconv.Itoa(status)).Inc()
		s.logger.Info("request",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := report.FormatJSON
	if v := q.Get("format"); v != "" {
		f, err := report.ParseFormat(v)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, err, nil)
			return
		}
		format = f
	}
	input, err := pipeline.ParseInputFormat(q.Get("input"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err, nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", s.cfg.MaxBodyBytes), nil)
			return
		}
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("read body: %w", err), nil)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		s.writeError(w, r, http.StatusBadRequest, &parse.MissingInputError{Path: "request body"}, nil)
		return
	}

	key := string(format) + "|" + string(input) + "|" + hash.Bytes(body)
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.generate(body, input, format)
	})
	if err != nil {
		var me *parse.MalformedInputError
		if errors.As(err, &me) {
			s.writeError(w, r, http.StatusUnprocessableEntity, err, me.Violations)
			return
		}
		s.writeError(w, r, http.StatusInternalServerError, err, nil)
		return
	}
	out := v.(rendered)
	if shared {
		s.logger.Debug("coalesced request", zap.String("request_id", requestIDFrom(r.Context())))
	}
	w.Header().Set("Content-Type", report.ContentType(format))
	w.Header().Set(HeaderTier, string(out.tier))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.body)
}

func (s *Server) generate(body []byte, input pipeline.InputFormat, format report.Format) (rendered, error) {
	p := pipeline.New(s.cfg.Defaults, s.logger, pipeline.Options{InputFormat: input, SchemaPath: s.cfg.SchemaPath})
	doc, err := p.RunBytes(body)
	if err != nil {
		return rendered{}, err
	}
	out, err := report.Render(doc, format)
	if err != nil {
		return rendered{}, err
	}
	return rendered{body: out, tier: doc.Verdict.Tier}, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error, violations []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:      err.Error(),
		Violations: violations,
		RequestID:  requestIDFrom(r.Context()),
	})
}
