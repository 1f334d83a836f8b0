// Package fetchers retrieves external resources referenced by import rows.
package fetchers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a single logo download. Third-party image hosts
	// are arbitrary, so a hung fetch must not stall a row indefinitely.
	DefaultTimeout = 15 * time.Second

	userAgent = "rentdir-bulk-importer/1.0 (+https://rentdir.example/bots)"

	maxLogoBytes = 10 << 20 // 10 MiB
)

// LogoFetcher downloads a logo image from a third-party URL.
type LogoFetcher interface {
	Fetch(ctx context.Context, rawURL string) (data []byte, contentType string, err error)
}

var _ LogoFetcher = (*HTTPLogoFetcher)(nil)

type HTTPLogoFetcher struct {
	client *http.Client
}

func NewHTTPLogoFetcher(timeout time.Duration) *HTTPLogoFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPLogoFetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch downloads rawURL with an identifying user agent. The reported
// content type comes from the response header and may be empty.
func (f *HTTPLogoFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, "", err
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", err
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("logo fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoBytes))
	if err != nil {
		return nil, "", err
	}

	if len(data) == 0 {
		return nil, "", fmt.Errorf("logo fetch returned an empty body")
	}

	return data, resp.Header.Get("Content-Type"), nil
}
