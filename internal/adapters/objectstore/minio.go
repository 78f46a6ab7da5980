package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"hotelbook/internal/adapters/observability"
)

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base used for returned locators; defaults to the
	// client endpoint URL.
	PublicURL string
	Region    string
}

// Store puts images into an S3-compatible bucket.
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func New(o Options) (*Store, error) {
	if o.Bucket == "" {
		return nil, errors.New("objectstore: bucket is required")
	}
	region := o.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(o.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(o.AccessKey, o.SecretKey, ""),
		Secure:       o.UseSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client for %s: %w", o.Endpoint, err)
	}
	base := strings.TrimRight(o.PublicURL, "/")
	if base == "" {
		base = client.EndpointURL().String() + "/" + o.Bucket
	}
	return &Store{client: client, bucket: o.Bucket, publicURL: base}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	log.Info().Str("bucket", s.bucket).Msg("bucket created")
	return nil
}

func (s *Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	start := time.Now()
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if resp := minio.ToErrorResponse(err); resp.StatusCode != 0 {
			status = resp.StatusCode
		}
		observability.ObserveExternal("minio", "put_object", status, time.Since(start))
		return "", fmt.Errorf("put %s/%s: %w", s.bucket, key, err)
	}
	observability.ObserveExternal("minio", "put_object", http.StatusOK, time.Since(start))
	log.Debug().Str("key", info.Key).Str("etag", info.ETag).Int64("size", info.Size).Msg("object stored")
	return s.publicURL + "/" + key, nil
}
