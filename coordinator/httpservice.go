package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rentdir/bulk-importer/importer"
)

const defaultRequestTimeout = 2 * time.Minute

var _ Service = (*HTTPService)(nil)

// HTTPService submits batches to a remote import API over HTTP.
type HTTPService struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPService(baseURL, token string) *HTTPService {
	return &HTTPService{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

type batchRequest struct {
	Rows              []importer.Row `json:"rows"`
	SkipLogos         bool           `json:"skipLogos"`
	DuplicateHandling string         `json:"duplicateHandling"`
}

type batchResponse struct {
	Success bool                  `json:"success"`
	Results *importer.BatchResult `json:"results,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func (s *HTTPService) ProcessBatch(ctx context.Context, rows []importer.Row, opts importer.BatchOptions) (importer.BatchResult, error) {
	body, err := json.Marshal(batchRequest{
		Rows:              rows,
		SkipLogos:         opts.SkipLogos,
		DuplicateHandling: opts.DuplicateHandling,
	})
	if err != nil {
		return importer.BatchResult{}, fmt.Errorf("failed to encode batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v1/import/batch", bytes.NewReader(body))
	if err != nil {
		return importer.BatchResult{}, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return importer.BatchResult{}, err
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return importer.BatchResult{}, fmt.Errorf("invalid response (status %d): %w", resp.StatusCode, err)
	}

	if !decoded.Success || decoded.Results == nil {
		msg := decoded.Error
		if msg == "" {
			msg = fmt.Sprintf("import service returned status %d", resp.StatusCode)
		}

		return importer.BatchResult{}, fmt.Errorf("batch rejected: %s", msg)
	}

	return *decoded.Results, nil
}
