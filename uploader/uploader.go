// Package uploader implements dal.Uploader against an S3-compatible
// bundler backend. Objects are keyed by the SHA-256 of their content, so
// re-uploading identical bytes after a retry is a no-op PutObject to the
// same key rather than a new object — the idempotence the write pipeline
// relies on for its upload-failure retry path.
package uploader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/permaweb/scheduler-unit/dal"
	"github.com/permaweb/scheduler-unit/metrics"
)

// Config selects the target bucket and optional key prefix.
type Config struct {
	Bucket string
	Prefix string
}

// Uploader persists bundle binaries to S3, content-addressed by key.
type Uploader struct {
	client *s3.Client
	cfg    Config
}

// New constructs an Uploader from an already-configured S3 client.
func New(client *s3.Client, cfg Config) *Uploader {
	return &Uploader{client: client, cfg: cfg}
}

func (u *Uploader) key(binary []byte) string {
	sum := sha256.Sum256(binary)
	digest := hex.EncodeToString(sum[:])
	if u.cfg.Prefix == "" {
		return digest
	}
	return u.cfg.Prefix + "/" + digest
}

// Upload writes binary to the bucket under its content-hash key. A
// repeated call with the same bytes lands on the same key and the same
// receipt, satisfying dal.Uploader's idempotence contract.
func (u *Uploader) Upload(ctx context.Context, binary []byte) (dal.UploadReceipt, error) {
	metrics.UploadsAttempted.Inc()
	key := u.key(binary)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(binary),
	})
	if err != nil {
		metrics.UploadsFailed.Inc()
		return dal.UploadReceipt{}, fmt.Errorf("put object %s/%s: %w", u.cfg.Bucket, key, err)
	}

	metrics.UploadBytes.Add(int64(len(binary)))
	return dal.UploadReceipt{ID: key, Size: len(binary)}, nil
}
