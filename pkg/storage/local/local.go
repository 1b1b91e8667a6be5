package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/williamokano/dbb/pkg/storage"
)

// Backend stores objects under <root>/<bucket>/<key> on the local filesystem
type Backend struct {
	name     string
	basePath string
}

func init() {
	storage.RegisterBackend("local", func(ctx context.Context, cfg storage.Config) (storage.ObjectStore, error) {
		return New(cfg)
	})
}

// New creates a new local filesystem backend
func New(cfg storage.Config) (*Backend, error) {
	root := storage.StringOption(cfg.Options, "path", "")
	if root == "" {
		return nil, fmt.Errorf("%w: missing required option: path", storage.ErrInvalidConfig)
	}
	if strings.ContainsAny(cfg.Bucket, `/\`) || cfg.Bucket == ".." {
		return nil, fmt.Errorf("%w: bucket %q is not a plain name", storage.ErrInvalidConfig, cfg.Bucket)
	}

	basePath := filepath.Join(root, cfg.Bucket)
	if err := os.MkdirAll(basePath, 0750); err != nil {
		return nil, storage.WrapError(cfg.Name(), "init", err)
	}

	return &Backend{
		name:     cfg.Name(),
		basePath: basePath,
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "local" }

// Path returns where key is stored
func (b *Backend) Path(key string) string {
	return filepath.Join(b.basePath, filepath.FromSlash(key))
}

// Put copies a file into the bucket directory
func (b *Backend) Put(ctx context.Context, sourcePath, key string, vis storage.Visibility) error {
	destFullPath := b.Path(key)
	if !strings.HasPrefix(destFullPath, b.basePath+string(filepath.Separator)) {
		return storage.WrapError(b.name, "write", fmt.Errorf("%w: key %q escapes bucket", storage.ErrInvalidConfig, key))
	}

	if err := os.MkdirAll(filepath.Dir(destFullPath), 0750); err != nil {
		return storage.WrapError(b.name, "write", err)
	}

	source, err := os.Open(sourcePath)
	if err != nil {
		return storage.WrapError(b.name, "write", err)
	}
	defer source.Close()

	tmp, err := os.CreateTemp(filepath.Dir(destFullPath), ".put-*")
	if err != nil {
		return storage.WrapError(b.name, "write", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	mode := os.FileMode(0600)
	if vis == storage.PublicRead {
		mode = 0644
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return storage.WrapError(b.name, "write", err)
	}

	if _, err := io.Copy(tmp, source); err != nil {
		tmp.Close()
		return storage.WrapError(b.name, "write", err)
	}
	if err := tmp.Close(); err != nil {
		return storage.WrapError(b.name, "write", err)
	}
	if err := ctx.Err(); err != nil {
		return storage.WrapError(b.name, "write", err)
	}

	if err := os.Rename(tmpPath, destFullPath); err != nil {
		return storage.WrapError(b.name, "write", err)
	}

	return nil
}

// Stat returns metadata about a stored object
func (b *Backend) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	info, err := os.Stat(b.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.WrapError(b.name, "stat", storage.ErrNotFound)
		}
		return nil, storage.WrapError(b.name, "stat", err)
	}

	return &storage.ObjectInfo{
		Key:     key,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Close is a no-op for local backend
func (b *Backend) Close() error {
	return nil
}
