package minio

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/williamokano/dbb/pkg/storage"
)

// Settings holds the minio specific options
type Settings struct {
	Endpoint string // host:port, no scheme
	UseSSL   bool   // Default: true
	Region   string
}

type Backend struct {
	name   string
	client *minio.Client
	bucket string
}

func init() {
	storage.RegisterBackend("minio", func(ctx context.Context, cfg storage.Config) (storage.ObjectStore, error) {
		return New(ctx, cfg)
	})
}

// ParseSettings extracts the minio options
func ParseSettings(options map[string]interface{}) (*Settings, error) {
	useSSL, err := storage.BoolOption(options, "use_ssl", true)
	if err != nil {
		return nil, err
	}

	s := &Settings{
		Endpoint: storage.StringOption(options, "endpoint", ""),
		UseSSL:   useSSL,
		Region:   storage.StringOption(options, "region", ""),
	}
	if s.Endpoint == "" {
		return nil, fmt.Errorf("%w: missing required option: endpoint", storage.ErrInvalidConfig)
	}
	return s, nil
}

// New creates a MinIO backend and checks that the bucket exists
func New(ctx context.Context, cfg storage.Config) (*Backend, error) {
	settings, err := ParseSettings(cfg.Options)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(settings.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    settings.UseSSL,
		Region:    settings.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, storage.WrapError(cfg.Name(), "init", fmt.Errorf("%w: %w", storage.ErrInvalidConfig, err))
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, storage.WrapError(cfg.Name(), "connection test", classify(err))
	}
	if !exists {
		return nil, storage.WrapError(cfg.Name(), "connection test", fmt.Errorf("%w: bucket %s", storage.ErrNotFound, cfg.Bucket))
	}

	return &Backend{
		name:   cfg.Name(),
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "minio" }

// Put uploads a file with the canned ACL header matching vis
func (b *Backend) Put(ctx context.Context, sourcePath, key string, vis storage.Visibility) error {
	_, err := b.client.FPutObject(ctx, b.bucket, key, sourcePath, minio.PutObjectOptions{
		ContentType:  "application/gzip",
		UserMetadata: map[string]string{"x-amz-acl": vis.String()},
	})
	if err != nil {
		return storage.WrapError(b.name, "upload", classify(err))
	}
	return nil
}

// Stat returns metadata about an object
func (b *Backend) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	info, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, storage.WrapError(b.name, "stat", classify(err))
	}

	return &storage.ObjectInfo{
		Key:     key,
		Size:    info.Size,
		ModTime: info.LastModified,
	}, nil
}

// Close is a no-op, the client keeps no session
func (b *Backend) Close() error {
	return nil
}

func classify(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %w", storage.ErrAuthFailed, err)
	case "AccessDenied":
		return fmt.Errorf("%w: %w", storage.ErrPermissionDenied, err)
	case "":
		return fmt.Errorf("%w: %w", storage.ErrConnFailed, err)
	}
	return err
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
