package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/rentdir/bulk-importer/importer"
	"github.com/rentdir/bulk-importer/processor"
)

type stubProcessor struct {
	lastRows []importer.Row
	lastID   processor.Identity
	err      error
}

func (s *stubProcessor) ProcessBatch(_ context.Context, rows []importer.Row, _ importer.BatchOptions, identity processor.Identity) (importer.BatchResult, error) {
	s.lastRows = rows
	s.lastID = identity

	if s.err != nil {
		return importer.BatchResult{}, s.err
	}

	return importer.BatchResult{Successful: len(rows)}, nil
}

func Test_CreateImportTask(t *testing.T) {
	payload := &ImportPayload{
		BatchID:   "batch-1",
		AccountID: "acc-1",
		Role:      "admin",
		Rows:      []importer.Row{{BusinessName: "Acme"}},
		Options:   importer.BatchOptions{SkipLogos: true},
	}

	task, err := CreateImportTask(payload)
	require.NoError(t, err)
	require.Equal(t, TypeImportBatch, task.Type())

	var decoded ImportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	require.Equal(t, "batch-1", decoded.BatchID)
	require.Len(t, decoded.Rows, 1)
	require.True(t, decoded.Options.SkipLogos)
}

func Test_ProcessImportTask(t *testing.T) {
	proc := &stubProcessor{}
	h := NewHandler(proc)

	task, err := CreateImportTask(&ImportPayload{
		BatchID:   "batch-1",
		AccountID: "acc-1",
		Role:      "admin",
		Rows:      []importer.Row{{BusinessName: "Acme"}, {BusinessName: "Bravo"}},
	})
	require.NoError(t, err)

	require.NoError(t, h.processImportTask(context.Background(), task))
	require.Len(t, proc.lastRows, 2)
	require.Equal(t, "acc-1", proc.lastID.AccountID)
	require.Equal(t, "admin", proc.lastID.Role)
}

func Test_ProcessImportTask_EmptyBatch(t *testing.T) {
	h := NewHandler(&stubProcessor{})

	task := asynq.NewTask(TypeImportBatch, []byte(`{"batch_id": "batch-2", "rows": []}`))

	require.Error(t, h.processImportTask(context.Background(), task))
}

func Test_ProcessImportTask_MalformedPayload(t *testing.T) {
	h := NewHandler(&stubProcessor{})

	task := asynq.NewTask(TypeImportBatch, []byte("{not json"))

	require.Error(t, h.processImportTask(context.Background(), task))
}

func Test_ProcessImportTask_ProcessorError(t *testing.T) {
	proc := &stubProcessor{err: errors.New("db gone")}
	h := NewHandler(proc)

	task, err := CreateImportTask(&ImportPayload{
		BatchID: "batch-3",
		Rows:    []importer.Row{{BusinessName: "Acme"}},
	})
	require.NoError(t, err)

	require.Error(t, h.processImportTask(context.Background(), task))
}
