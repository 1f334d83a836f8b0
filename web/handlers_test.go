package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/rentdir/bulk-importer/importer"
	"github.com/rentdir/bulk-importer/postgres"
	"github.com/rentdir/bulk-importer/processor"
	"github.com/rentdir/bulk-importer/redis/tasks"
	"github.com/rentdir/bulk-importer/web"
)

type stubAccounts struct {
	tokens map[string]postgres.Account
}

func (s *stubAccounts) AccountByToken(_ context.Context, token string) (postgres.Account, error) {
	acc, ok := s.tokens[token]
	if !ok {
		return postgres.Account{}, postgres.ErrNotFound
	}

	return acc, nil
}

type stubProcessor struct {
	lastRows []importer.Row
	lastOpts importer.BatchOptions
	lastID   processor.Identity
	result   importer.BatchResult
	err      error
}

func (s *stubProcessor) ProcessBatch(_ context.Context, rows []importer.Row, opts importer.BatchOptions, identity processor.Identity) (importer.BatchResult, error) {
	s.lastRows = rows
	s.lastOpts = opts
	s.lastID = identity

	if s.err != nil {
		return importer.BatchResult{}, s.err
	}

	return s.result, nil
}

type stubQueue struct {
	lastType    string
	lastPayload []byte
	err         error
}

func (s *stubQueue) EnqueueTask(_ context.Context, taskType string, payload []byte, _ ...asynq.Option) error {
	s.lastType = taskType
	s.lastPayload = payload

	return s.err
}

func newTestServer(proc *stubProcessor) *web.Server {
	return newTestServerWithQueue(proc, nil)
}

func newTestServerWithQueue(proc *stubProcessor, queue web.TaskQueue) *web.Server {
	return web.New(web.Config{
		Addr: ":0",
		Accounts: &stubAccounts{tokens: map[string]postgres.Account{
			"admin-token": {ID: "acc-1", Email: "ops@rentdir.example", Role: "admin"},
		}},
		Proc:  proc,
		Queue: queue,
	})
}

func batchBody(t *testing.T, rows []importer.Row, opts importer.BatchOptions) *bytes.Buffer {
	t.Helper()

	payload := map[string]any{
		"rows":              rows,
		"skipLogos":         opts.SkipLogos,
		"duplicateHandling": opts.DuplicateHandling,
	}

	buf := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buf).Encode(payload))

	return buf
}

func Test_ImportBatch_RequiresToken(t *testing.T) {
	srv := newTestServer(&stubProcessor{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/batch", strings.NewReader("{}"))
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func Test_ImportBatch_RejectsUnknownToken(t *testing.T) {
	srv := newTestServer(&stubProcessor{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/batch", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer nope")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func Test_ImportBatch_MalformedBody(t *testing.T) {
	srv := newTestServer(&stubProcessor{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/batch", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func Test_ImportBatch_EmptyRows(t *testing.T) {
	srv := newTestServer(&stubProcessor{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/batch", strings.NewReader(`{"rows": []}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func Test_ImportBatch_Success(t *testing.T) {
	proc := &stubProcessor{
		result: importer.BatchResult{
			Successful: 1,
			Failed:     1,
			Errors:     []importer.RowError{{Row: 2, Error: "insert failed: boom"}},
		},
	}
	srv := newTestServer(proc)

	rows := []importer.Row{
		{BusinessName: "Acme", Category: "Equipment", Address: "1 Main", City: "Springfield", State: "IL", Zip: "62701"},
		{BusinessName: "Bravo", Category: "Equipment", Address: "2 Main", City: "Springfield", State: "IL", Zip: "62701"},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/batch",
		batchBody(t, rows, importer.BatchOptions{SkipLogos: true, DuplicateHandling: importer.DuplicateUpdate}))
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                 `json:"success"`
		Results importer.BatchResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Success)
	require.Equal(t, 1, resp.Results.Successful)
	require.Equal(t, 1, resp.Results.Failed)
	require.Len(t, resp.Results.Errors, 1)
	require.Equal(t, 2, resp.Results.Errors[0].Row)

	require.Len(t, proc.lastRows, 2)
	require.True(t, proc.lastOpts.SkipLogos)
	require.Equal(t, importer.DuplicateUpdate, proc.lastOpts.DuplicateHandling)
	require.Equal(t, "acc-1", proc.lastID.AccountID)
	require.Equal(t, "admin", proc.lastID.Role)
}

func Test_ImportBatch_ForbiddenForNonAdmin(t *testing.T) {
	proc := &stubProcessor{err: processor.ErrUnauthorized}
	srv := newTestServer(proc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/batch",
		batchBody(t, []importer.Row{{BusinessName: "Acme"}}, importer.BatchOptions{}))
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func Test_ImportBatch_ProcessorError(t *testing.T) {
	proc := &stubProcessor{err: errors.New("db gone")}
	srv := newTestServer(proc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/batch",
		batchBody(t, []importer.Row{{BusinessName: "Acme"}}, importer.BatchOptions{}))
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "db gone")
}

func Test_ImportBatch_UnknownPolicy(t *testing.T) {
	proc := &stubProcessor{err: fmt.Errorf("%w %q", processor.ErrUnknownPolicy, "merge")}
	srv := newTestServer(proc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/batch",
		batchBody(t, []importer.Row{{BusinessName: "Acme"}}, importer.BatchOptions{DuplicateHandling: "merge"}))
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.False(t, resp.Success)
	require.Contains(t, resp.Error, "merge")
}

func Test_ImportBatch_AsyncEnqueues(t *testing.T) {
	proc := &stubProcessor{}
	queue := &stubQueue{}
	srv := newTestServerWithQueue(proc, queue)

	body := `{"rows":[{"business_name":"Acme"}],"async":true,"duplicateHandling":"update"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/batch", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Nil(t, proc.lastRows, "async submission must not process inline")
	require.Equal(t, tasks.TypeImportBatch, queue.lastType)

	var payload tasks.ImportPayload
	require.NoError(t, json.Unmarshal(queue.lastPayload, &payload))
	require.NotEmpty(t, payload.BatchID)
	require.Equal(t, "acc-1", payload.AccountID)
	require.Equal(t, "admin", payload.Role)
	require.Len(t, payload.Rows, 1)
	require.Equal(t, "Acme", payload.Rows[0].BusinessName)
	require.Equal(t, importer.DuplicateUpdate, payload.Options.DuplicateHandling)

	var resp struct {
		Success bool   `json:"success"`
		BatchID string `json:"batchId"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Success)
	require.Equal(t, payload.BatchID, resp.BatchID)
}

func Test_ImportBatch_AsyncWithoutQueue(t *testing.T) {
	srv := newTestServer(&stubProcessor{})

	body := `{"rows":[{"business_name":"Acme"}],"async":true}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/batch", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, w.Body.String(), "queued imports are not enabled")
}

func Test_ImportBatch_AsyncEnqueueFailure(t *testing.T) {
	queue := &stubQueue{err: errors.New("redis gone")}
	srv := newTestServerWithQueue(&stubProcessor{}, queue)

	body := `{"rows":[{"business_name":"Acme"}],"async":true}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/batch", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "redis gone")
}

func Test_ImportTemplate(t *testing.T) {
	srv := newTestServer(&stubProcessor{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/import/template", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), importer.TemplateFileName)

	rows, err := importer.ParseCSV(w.Body.String())
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func Test_Health(t *testing.T) {
	srv := newTestServer(&stubProcessor{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ok")
}
