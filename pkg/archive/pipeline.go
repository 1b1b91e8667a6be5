package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/williamokano/dbb/pkg/config"
	"github.com/williamokano/dbb/pkg/dump"
	"github.com/williamokano/dbb/pkg/failure"
	"github.com/williamokano/dbb/pkg/storage"
)

// DefaultMinBytes is the smallest artifact considered a real dump. Lower
// thresholds are raised to it.
const DefaultMinBytes int64 = config.MinArtifactBytes

// Options configures a Pipeline
type Options struct {
	Open           storage.Opener
	StorageType    string
	StorageOptions map[string]interface{}
	MinBytes       int64
	UploadTimeout  time.Duration
	Verify         bool
	Logger         zerolog.Logger
}

// Destination is where an artifact was stored
type Destination struct {
	Store  string
	Bucket string
	Key    string
}

// Pipeline validates, uploads and removes a produced artifact
type Pipeline struct {
	opts Options
}

// NewPipeline creates a pipeline
func NewPipeline(opts Options) *Pipeline {
	if opts.MinBytes < DefaultMinBytes {
		opts.MinBytes = DefaultMinBytes
	}
	if opts.Open == nil {
		opts.Open = storage.Open
	}
	return &Pipeline{opts: opts}
}

// NewPipelineFromSettings builds a pipeline backed by the registered storage backends
func NewPipelineFromSettings(settings *config.Settings, logger zerolog.Logger) *Pipeline {
	return NewPipeline(Options{
		Open:           storage.Open,
		StorageType:    settings.Storage.Type,
		StorageOptions: settings.Storage.Options,
		MinBytes:       settings.GetMinArtifactBytes(),
		UploadTimeout:  settings.Storage.Timeout,
		Verify:         settings.Storage.Verify,
		Logger:         logger,
	})
}

// RemoteKey is the object key of a run: <prefix>/<runDate>.sql.gz
func RemoteKey(prefix, runDate string) string {
	return path.Join(prefix, runDate+".sql.gz")
}

// Validate rejects missing or implausibly small artifacts. The file is never touched.
func (p *Pipeline) Validate(artifact dump.Artifact) error {
	info, err := os.Stat(artifact.LocalPath)
	if err != nil {
		return failure.InvalidArtifact(err, "artifact %s unreadable", artifact.LocalPath)
	}
	if !info.Mode().IsRegular() {
		return failure.InvalidArtifact(nil, "artifact %s is not a regular file", artifact.LocalPath)
	}
	if info.Size() < p.opts.MinBytes {
		return failure.InvalidArtifact(nil, "artifact %s is %d bytes, below the %d byte minimum",
			artifact.LocalPath, info.Size(), p.opts.MinBytes)
	}
	return nil
}

// StorageConfig describes the store a run uploads to
func (p *Pipeline) StorageConfig(cfg config.RunConfig) storage.Config {
	return storage.Config{
		Type:      p.opts.StorageType,
		Bucket:    cfg.BucketName(),
		AccessKey: cfg.StorageAccessKey(),
		SecretKey: cfg.StorageSecretKey(),
		Options:   p.opts.StorageOptions,
	}
}

// Upload stores the artifact privately under the run's key
func (p *Pipeline) Upload(ctx context.Context, cfg config.RunConfig, artifact dump.Artifact) (Destination, error) {
	dest := Destination{
		Bucket: cfg.BucketName(),
		Key:    RemoteKey(cfg.KeyPrefix(), artifact.RunDate),
	}
	log := p.opts.Logger.With().
		Str("bucket", dest.Bucket).
		Str("key", dest.Key).
		Logger()

	uploadCtx := ctx
	if p.opts.UploadTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, p.opts.UploadTimeout)
		defer cancel()
	}

	storeCfg := p.StorageConfig(cfg)
	store, err := p.opts.Open(uploadCtx, storeCfg)
	if err != nil {
		return dest, failure.Upload(err, "failed to open %s", storeCfg.Name())
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}()
	dest.Store = store.Name()

	start := time.Now()
	log.Info().
		Str("store", store.Name()).
		Int64("size_bytes", artifact.SizeBytes).
		Msg("uploading artifact")

	if err := store.Put(uploadCtx, artifact.LocalPath, dest.Key, storage.Private); err != nil {
		return dest, failure.Upload(err, "upload to %s/%s failed", dest.Bucket, dest.Key)
	}

	if p.opts.Verify {
		if err := p.verify(uploadCtx, store, artifact, dest.Key); err != nil {
			return dest, failure.Upload(err, "verification of %s/%s failed", dest.Bucket, dest.Key)
		}
	}

	log.Info().
		Dur("duration", time.Since(start)).
		Bool("verified", p.opts.Verify).
		Msg("artifact uploaded")

	return dest, nil
}

func (p *Pipeline) verify(ctx context.Context, store storage.ObjectStore, artifact dump.Artifact, key string) error {
	local, err := os.Stat(artifact.LocalPath)
	if err != nil {
		return err
	}

	remote, err := store.Stat(ctx, key)
	if err != nil {
		return err
	}

	if remote.Size != local.Size() {
		return fmt.Errorf("%w: remote %d bytes, local %d bytes", storage.ErrSizeMismatch, remote.Size, local.Size())
	}
	return nil
}

// Cleanup removes the local artifact. Call it only after a successful Upload.
func (p *Pipeline) Cleanup(artifact dump.Artifact) error {
	if err := os.Remove(artifact.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", artifact.LocalPath, err)
	}
	p.opts.Logger.Debug().Str("artifact", artifact.LocalPath).Msg("local artifact removed")
	return nil
}
