// Package objstore mirrors bundle archives to S3-compatible object storage.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const zipContentType = "application/zip"

// Mirror copies bundles to a remote store and removes them again.
type Mirror interface {
	Enabled() bool
	Put(ctx context.Context, path string) error
	Remove(ctx context.Context, name string) error
}

// Config holds the remote endpoint settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Prefix is the key directory bundles are stored under.
	Prefix string
}

// Noop is the Mirror used when no endpoint is configured.
type Noop struct{}

// Enabled always reports false.
func (Noop) Enabled() bool { return false }

// Put does nothing.
func (Noop) Put(context.Context, string) error { return nil }

// Remove does nothing.
func (Noop) Remove(context.Context, string) error { return nil }

// S3Mirror mirrors bundles through the minio SDK.
type S3Mirror struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ Mirror = (*S3Mirror)(nil)

// New returns an S3Mirror for cfg, or Noop when cfg has no endpoint.
func New(cfg Config) (Mirror, error) {
	if cfg.Endpoint == "" {
		return Noop{}, nil
	}

	if cfg.Bucket == "" {
		return nil, errors.New("objstore: bucket is required")
	}

	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("objstore: credentials are required")
	}

	endpoint, useSSL := cfg.Endpoint, cfg.UseSSL

	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		useSSL = useSSL || u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("objstore: creating client: %w", err)
	}

	return &S3Mirror{client: client, bucket: cfg.Bucket, prefix: keyPrefix(cfg.Prefix)}, nil
}

// Enabled reports true.
func (m *S3Mirror) Enabled() bool { return true }

func keyPrefix(p string) string {
	if p = strings.Trim(p, "/"); p == "" {
		return ""
	}

	return p + "/"
}

func (m *S3Mirror) key(name string) string {
	return m.prefix + filepath.Base(name)
}

// EnsureBucket creates the bucket if it does not exist.
func (m *S3Mirror) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("objstore: checking bucket: %w", err)
	}

	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("objstore: creating bucket: %w", err)
	}

	return nil
}

// Put uploads the archive at path under its base name.
func (m *S3Mirror) Put(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("objstore: opening %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("objstore: stat %s: %w", path, err)
	}

	_, err = m.client.PutObject(ctx, m.bucket, m.key(path), f, info.Size(), minio.PutObjectOptions{
		ContentType: zipContentType,
	})
	if err != nil {
		return fmt.Errorf("objstore: uploading %s: %w", filepath.Base(path), err)
	}

	return nil
}

// Remove deletes the mirrored copy of name. A missing object is not an error.
func (m *S3Mirror) Remove(ctx context.Context, name string) error {
	err := m.client.RemoveObject(ctx, m.bucket, m.key(name), minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}

	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
		return nil
	}

	return fmt.Errorf("objstore: removing %s: %w", name, err)
}
