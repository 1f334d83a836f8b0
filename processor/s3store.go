package processor

import (
	"bytes"
	"context"

	"github.com/rentdir/bulk-importer/s3uploader"
)

var _ ImageStore = (*S3ImageStore)(nil)

// S3ImageStore stores logo images in an S3 bucket.
type S3ImageStore struct {
	uploader *s3uploader.Uploader
	bucket   string
}

func NewS3ImageStore(uploader *s3uploader.Uploader, bucket string) *S3ImageStore {
	return &S3ImageStore{
		uploader: uploader,
		bucket:   bucket,
	}
}

func (s *S3ImageStore) Upload(ctx context.Context, key, contentType string, data []byte) error {
	return s.uploader.Upload(ctx, s.bucket, key, contentType, bytes.NewReader(data))
}

func (s *S3ImageStore) PublicURL(key string) string {
	return s.uploader.PublicURL(s.bucket, key)
}
