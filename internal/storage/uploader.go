package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/inkfable/storypress/internal/aws"
)

// Uploader writes rendered documents to the asset bucket. It is an explicitly
// constructed, injected capability: tests swap it for a fake instead of
// mutating process-wide state.
type Uploader struct {
	client aws.S3API
	bucket string
	prefix string
}

// NewUploader returns an Uploader bound to a bucket and key prefix.
func NewUploader(client aws.S3API, bucket, prefix string) *Uploader {
	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Upload stores body under the prefix and returns the durable object URL.
func (u *Uploader) Upload(ctx context.Context, key, contentType string, body []byte) (string, error) {
	fullKey := u.prefix + key
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &fullKey,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", fullKey, err)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", u.bucket, fullKey), nil
}
