// Package web exposes the bulk import API over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/rentdir/bulk-importer/importer"
	"github.com/rentdir/bulk-importer/processor"
)

// BatchProcessor imports one batch on behalf of an authenticated caller.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, rows []importer.Row, opts importer.BatchOptions, identity processor.Identity) (importer.BatchResult, error)
}

// TaskQueue hands batches off to the worker pool instead of processing them
// in the request. Satisfied by redis.Client.
type TaskQueue interface {
	EnqueueTask(ctx context.Context, taskType string, payload []byte, opts ...asynq.Option) error
}

type Config struct {
	Addr     string
	Accounts AccountSource
	Proc     BatchProcessor
	Queue    TaskQueue // optional, enables async batch submission
	Logger   *zap.Logger
}

type Server struct {
	addr     string
	accounts AccountSource
	proc     BatchProcessor
	queue    TaskQueue
	router   *mux.Router
	lg       *zap.Logger
}

func New(cfg Config) *Server {
	lg := cfg.Logger
	if lg == nil {
		lg = zap.NewNop()
	}

	s := &Server{
		addr:     cfg.Addr,
		accounts: cfg.Accounts,
		proc:     cfg.Proc,
		queue:    cfg.Queue,
		lg:       lg,
	}

	s.router = s.routes()

	return s
}

// Handler returns the fully wired HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.requestLogger, s.authenticate)
	api.HandleFunc("/import/batch", s.importBatch).Methods(http.MethodPost)
	api.HandleFunc("/import/template", s.importTemplate).Methods(http.MethodGet)

	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		s.lg.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	s.lg.Info("http server listening", zap.String("addr", s.addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
