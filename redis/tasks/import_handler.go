package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/rentdir/bulk-importer/processor"
)

// CreateImportTask creates a queue task carrying one import batch.
func CreateImportTask(payload *ImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal import payload: %w", err)
	}

	return asynq.NewTask(TypeImportBatch, data), nil
}

func (h *Handler) processImportTask(ctx context.Context, task *asynq.Task) error {
	var payload ImportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal import payload: %w", err)
	}

	if len(payload.Rows) == 0 {
		return fmt.Errorf("no rows in batch %s", payload.BatchID)
	}

	if h.taskTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, h.taskTimeout)
		defer cancel()
	}

	identity := processor.Identity{AccountID: payload.AccountID, Role: payload.Role}

	result, err := h.proc.ProcessBatch(ctx, payload.Rows, payload.Options, identity)
	if err != nil {
		return fmt.Errorf("batch %s failed: %w", payload.BatchID, err)
	}

	h.lg.Info("queued batch processed",
		zap.String("batch_id", payload.BatchID),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
	)

	return nil
}
