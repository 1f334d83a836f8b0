package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentdir/bulk-importer/importer"
	"github.com/rentdir/bulk-importer/processor"
	"github.com/rentdir/bulk-importer/redis/tasks"
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type batchRequest struct {
	Rows  []importer.Row `json:"rows"`
	Async bool           `json:"async,omitempty"`
	importer.BatchOptions
}

type batchResponse struct {
	Success bool                  `json:"success"`
	Results *importer.BatchResult `json:"results,omitempty"`
	BatchID string                `json:"batchId,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func renderJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) importBatch(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		renderJSON(w, http.StatusUnauthorized, apiError{Code: http.StatusUnauthorized, Message: "not authenticated"})

		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderJSON(w, http.StatusUnprocessableEntity, apiError{Code: http.StatusUnprocessableEntity, Message: err.Error()})

		return
	}

	if len(req.Rows) == 0 {
		renderJSON(w, http.StatusUnprocessableEntity, apiError{Code: http.StatusUnprocessableEntity, Message: "rows must not be empty"})

		return
	}

	if req.Async {
		s.enqueueBatch(w, r, &req, identity)

		return
	}

	result, err := s.proc.ProcessBatch(r.Context(), req.Rows, req.BatchOptions, identity)
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrUnauthorized):
			renderJSON(w, http.StatusForbidden, batchResponse{Error: err.Error()})
		case errors.Is(err, processor.ErrUnknownPolicy):
			renderJSON(w, http.StatusBadRequest, batchResponse{Error: err.Error()})
		default:
			s.lg.Error("batch import failed", zap.Int("rows", len(req.Rows)), zap.Error(err))
			renderJSON(w, http.StatusInternalServerError, batchResponse{Error: "import failed"})
		}

		return
	}

	renderJSON(w, http.StatusOK, batchResponse{Success: true, Results: &result})
}

// enqueueBatch hands a batch to the worker queue and answers 202 with the
// batch id the caller can correlate worker logs against.
func (s *Server) enqueueBatch(w http.ResponseWriter, r *http.Request, req *batchRequest, identity processor.Identity) {
	if s.queue == nil {
		renderJSON(w, http.StatusUnprocessableEntity, apiError{Code: http.StatusUnprocessableEntity, Message: "queued imports are not enabled"})

		return
	}

	payload := tasks.ImportPayload{
		BatchID:   uuid.New().String(),
		AccountID: identity.AccountID,
		Role:      identity.Role,
		Rows:      req.Rows,
		Options:   req.BatchOptions,
	}

	task, err := tasks.CreateImportTask(&payload)
	if err != nil {
		s.lg.Error("failed to build import task", zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, batchResponse{Error: "import failed"})

		return
	}

	if err := s.queue.EnqueueTask(r.Context(), task.Type(), task.Payload()); err != nil {
		s.lg.Error("failed to enqueue batch", zap.String("batch_id", payload.BatchID), zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, batchResponse{Error: "import failed"})

		return
	}

	renderJSON(w, http.StatusAccepted, batchResponse{Success: true, BatchID: payload.BatchID})
}

func (s *Server) importTemplate(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+importer.TemplateFileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(importer.Template())
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
