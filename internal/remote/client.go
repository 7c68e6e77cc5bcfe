// Package remote stores the shared synced state in S3-compatible object
// storage through the MinIO client. Each [state.Key] maps to one object under
// a configurable prefix; writes replace the whole object, so the store is
// last-write-wins per key.
//
// Transport failures are retried with exponential backoff (see [Retry]);
// missing objects are reported as unset keys, not errors.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/njoerd114/bookmarkrelay/internal/state"
)

// Client is the subset of the MinIO client used by the store. Defining it as
// an interface allows mock injection in tests.
type Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Config holds the object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
	// Prefix is prepended to every object name, e.g. "bookmarkrelay/".
	Prefix  string
	Timeout time.Duration
}

// NewClient creates a MinIO client with strict transport timeouts.
func NewClient(cfg Config) (Client, error) {
	// Minio expects endpoint without scheme
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	mc, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return &minioClientWrapper{Client: mc}, nil
}

// minioClientWrapper narrows GetObject's return type to io.ReadCloser.
type minioClientWrapper struct {
	*minio.Client
}

func (c *minioClientWrapper) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return c.Client.GetObject(ctx, bucketName, objectName, opts)
}

var _ state.KV = (*Store)(nil)

// Store implements [state.KV] on top of object storage.
type Store struct {
	client      Client
	bucket      string
	prefix      string
	maxAttempts int
	log         *slog.Logger
}

// NewStore returns a Store writing into bucket under prefix.
func NewStore(client Client, bucket, prefix string, logger *slog.Logger) *Store {
	return &Store{
		client:      client,
		bucket:      bucket,
		prefix:      prefix,
		maxAttempts: defaultMaxAttempts,
		log:         logger,
	}
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	s.log.Info("creating bucket", "bucket", s.bucket)
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("creating bucket %q: %w", s.bucket, err)
	}
	return nil
}

func (s *Store) objectName(key state.Key) string {
	return path.Join(s.prefix, string(key)+".json")
}

// Get downloads the object for key.
func (s *Store) Get(ctx context.Context, key state.Key) ([]byte, bool, error) {
	name := s.objectName(key)
	var data []byte
	missing := false

	err := Retry(ctx, s.maxAttempts, func() error {
		obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
		if err != nil {
			if isNotFound(err) {
				missing = true
				return nil
			}
			return classify(err)
		}
		defer func() { _ = obj.Close() }()

		data, err = io.ReadAll(obj)
		if err != nil {
			// GetObject is lazy: a missing object surfaces on first read.
			if isNotFound(err) {
				missing = true
				return nil
			}
			return classify(err)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading object %q: %w", name, err)
	}
	if missing {
		return nil, false, nil
	}
	return data, true, nil
}

// Set uploads value as the object for key, replacing it.
func (s *Store) Set(ctx context.Context, key state.Key, value []byte) error {
	name := s.objectName(key)
	err := Retry(ctx, s.maxAttempts, func() error {
		_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(value), int64(len(value)),
			minio.PutObjectOptions{ContentType: "application/json"})
		return classify(err)
	})
	if err != nil {
		return fmt.Errorf("writing object %q: %w", name, err)
	}
	s.log.Debug("object written", "object", name, "bytes", len(value))
	return nil
}

// Remove deletes the object for key.
func (s *Store) Remove(ctx context.Context, key state.Key) error {
	name := s.objectName(key)
	err := Retry(ctx, s.maxAttempts, func() error {
		err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{})
		if isNotFound(err) {
			return nil
		}
		return classify(err)
	})
	if err != nil {
		return fmt.Errorf("removing object %q: %w", name, err)
	}
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
	}
	return false
}
