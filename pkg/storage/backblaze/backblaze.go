package backblaze

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kurin/blazer/b2"

	"github.com/williamokano/dbb/pkg/storage"
)

// Backend uploads to a B2 bucket. Access key is the account (or key) id and
// secret key the application key.
type Backend struct {
	name       string
	client     *b2.Client
	bucket     *b2.Bucket
	bucketType b2.BucketType
}

func init() {
	storage.RegisterBackend("backblaze", func(ctx context.Context, cfg storage.Config) (storage.ObjectStore, error) {
		return New(ctx, cfg)
	})
}

// New creates a new Backblaze B2 backend
func New(ctx context.Context, cfg storage.Config) (*Backend, error) {
	client, err := b2.NewClient(ctx, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, storage.WrapError(cfg.Name(), "init", fmt.Errorf("%w: %w", storage.ErrAuthFailed, err))
	}

	bucket, err := client.Bucket(ctx, cfg.Bucket)
	if err != nil {
		return nil, storage.WrapError(cfg.Name(), "get bucket", classify(err))
	}

	attrs, err := bucket.Attrs(ctx)
	if err != nil {
		return nil, storage.WrapError(cfg.Name(), "bucket attrs", classify(err))
	}

	return &Backend{
		name:       cfg.Name(),
		client:     client,
		bucket:     bucket,
		bucketType: attrs.Type,
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "backblaze" }

// Put uploads a file to B2. Visibility is a bucket property on B2, so a private
// upload into a public bucket is refused instead of silently exposing the dump.
func (b *Backend) Put(ctx context.Context, sourcePath, key string, vis storage.Visibility) error {
	if vis == storage.Private && b.bucketType == b2.Public {
		return storage.WrapError(b.name, "upload", fmt.Errorf("%w: bucket is public", storage.ErrPermissionDenied))
	}

	file, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := b.bucket.Object(key).NewWriter(ctx)

	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return storage.WrapError(b.name, "upload", classify(err))
	}

	if err := writer.Close(); err != nil {
		return storage.WrapError(b.name, "upload", classify(err))
	}

	return nil
}

// Stat returns file metadata
func (b *Backend) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	attrs, err := b.bucket.Object(key).Attrs(ctx)
	if err != nil {
		return nil, storage.WrapError(b.name, "stat", classify(err))
	}

	return &storage.ObjectInfo{
		Key:     key,
		Size:    attrs.Size,
		ModTime: attrs.UploadTimestamp,
	}, nil
}

// Close releases resources
func (b *Backend) Close() error {
	return nil
}

func classify(err error) error {
	if b2.IsNotExist(err) {
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", storage.ErrConnFailed, err)
}
