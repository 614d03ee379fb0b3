package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ge-labs/dink-server/internal/metrics"
)

// S3Config holds the settings for an S3-compatible attachment bucket.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// PublicURL overrides the base URL used to build object references.
	// When empty, references are composed from the endpoint and bucket.
	PublicURL string
}

// S3Store relocates attachments to an S3-compatible bucket and returns the
// object's public URL as the reference.
type S3Store struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewS3Store connects to the configured S3-compatible endpoint. The bucket
// must already exist; object ACLs are the bucket's concern.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: s3 client: %w", err)
	}

	baseURL := strings.TrimSuffix(cfg.PublicURL, "/")
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &S3Store{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// Name implements Store.
func (s *S3Store) Name() string { return "s3" }

// Put implements Store. The returned reference is an absolute URL, so the
// URI rewriter substitutes it verbatim.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return "", fmt.Errorf("blob: s3 put %q: %w", key, err)
	}
	metrics.AttachmentsTotal.WithLabelValues(s.Name()).Inc()
	return s.baseURL + "/" + key, nil
}
