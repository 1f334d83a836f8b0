// Package tasks provides the asynq handlers for queued imports.
package tasks

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/rentdir/bulk-importer/importer"
	"github.com/rentdir/bulk-importer/processor"
)

// BatchProcessor imports one batch on behalf of an authenticated caller.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, rows []importer.Row, opts importer.BatchOptions, identity processor.Identity) (importer.BatchResult, error)
}

// Handler processes queued import tasks.
type Handler struct {
	proc        BatchProcessor
	taskTimeout time.Duration
	lg          *zap.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithTaskTimeout bounds the processing time of a single task.
func WithTaskTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		h.taskTimeout = timeout
	}
}

// WithLogger sets the handler logger.
func WithLogger(lg *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.lg = lg
	}
}

func NewHandler(proc BatchProcessor, opts ...HandlerOption) *Handler {
	h := &Handler{
		proc:        proc,
		taskTimeout: 10 * time.Minute,
		lg:          zap.NewNop(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Register attaches all task handlers to the mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeImportBatch, h.processImportTask)
	mux.HandleFunc(TypeHealthCheck, h.processNoop)
	mux.HandleFunc(TypeConnectionTest, h.processNoop)
}

func (h *Handler) processNoop(_ context.Context, _ *asynq.Task) error {
	return nil
}
