package processor

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rentdir/bulk-importer/importer"
)

var dataURIRe = regexp.MustCompile(`^data:image/([a-zA-Z0-9.+-]+);base64,(.+)$`)

var extensions = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

// resolveLogo fetches or decodes the row's logo and uploads it, returning the
// public URL or "" when anything goes wrong. Failures are logged only: a
// broken image host must not sink the row. Every attempt is followed by a
// short pause to avoid hammering image hosts and the storage backend.
func (p *Processor) resolveLogo(ctx context.Context, row *importer.Row, delay time.Duration) string {
	if p.images == nil {
		return ""
	}

	defer func() {
		if delay <= 0 {
			return
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}()

	data, contentType, ext, err := p.logoBytes(ctx, row.LogoURL)
	if err != nil {
		p.lg.Warn("logo resolution failed, importing without image",
			zap.String("business_name", row.BusinessName),
			zap.Error(err),
		)

		return ""
	}

	key := fmt.Sprintf("logos/%d-%s.%s", time.Now().Unix(), slugify(row.BusinessName), ext)

	if err := p.images.Upload(ctx, key, contentType, data); err != nil {
		p.lg.Warn("logo upload failed, importing without image",
			zap.String("business_name", row.BusinessName),
			zap.String("key", key),
			zap.Error(err),
		)

		return ""
	}

	return p.images.PublicURL(key)
}

func (p *Processor) logoBytes(ctx context.Context, logoURL string) (data []byte, contentType, ext string, err error) {
	if m := dataURIRe.FindStringSubmatch(logoURL); m != nil {
		data, err = base64.StdEncoding.DecodeString(m[2])
		if err != nil {
			return nil, "", "", fmt.Errorf("invalid base64 image data: %w", err)
		}

		return data, "image/" + m[1], normalizeExt(m[1]), nil
	}

	if p.fetcher == nil {
		return nil, "", "", fmt.Errorf("no logo fetcher configured")
	}

	data, contentType, err = p.fetcher.Fetch(ctx, logoURL)
	if err != nil {
		return nil, "", "", err
	}

	return data, contentType, extFromContentType(contentType), nil
}

func extFromContentType(contentType string) string {
	base := strings.TrimSpace(strings.Split(contentType, ";")[0])

	if ext, ok := extensions[base]; ok {
		return ext
	}

	if rest, ok := strings.CutPrefix(base, "image/"); ok && rest != "" {
		return normalizeExt(rest)
	}

	return "png"
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)

	switch ext {
	case "jpeg":
		return "jpg"
	case "svg+xml":
		return "svg"
	default:
		return ext
	}
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = slugRe.ReplaceAllString(strings.ToLower(s), "-")

	return strings.Trim(s, "-")
}
