package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/williamokano/dbb/pkg/config"
	"github.com/williamokano/dbb/pkg/dump"
	"github.com/williamokano/dbb/pkg/failure"
	"github.com/williamokano/dbb/pkg/storage"
	"github.com/williamokano/dbb/pkg/storage/mocks"
)

func testRunConfig(t *testing.T) config.RunConfig {
	t.Helper()
	cfg, err := config.NewRunConfig(config.RunParams{
		Namespace:        "acme",
		Environment:      "production",
		DatabaseHost:     "db",
		DatabaseName:     "app",
		DatabaseUser:     "root",
		DatabasePassword: "pw",
		BucketName:       "acme-backups-dev",
		KeyPrefix:        "acme-dev",
		StorageAccessKey: "AK",
		StorageSecretKey: "SK",
	})
	require.NoError(t, err)
	return cfg
}

func writeArtifact(t *testing.T, size int) dump.Artifact {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")
	require.NoError(t, os.MkdirAll(dir, 0750))
	p := dump.ArtifactPath(dir, "dump_", "05-03-2024")
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0600))
	return dump.Artifact{LocalPath: p, RunDate: "05-03-2024", SizeBytes: int64(size)}
}

func TestRemoteKey(t *testing.T) {
	assert.Equal(t, "acme-dev/05-03-2024.sql.gz", RemoteKey("acme-dev", "05-03-2024"))
	assert.Equal(t, "acme/05-03-2024.sql.gz", RemoteKey("acme", "05-03-2024"))
	assert.Equal(t, "acme-db/01-12-2023.sql.gz", RemoteKey("acme-db", "01-12-2023"))
}

func TestPipeline_Validate(t *testing.T) {
	p := NewPipeline(Options{Logger: zerolog.Nop()})

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"empty", 0, true},
		{"header_only", 500, true},
		{"one_below_threshold", 1023, true},
		{"at_threshold", 1024, false},
		{"plausible", 64 * 1024, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifact := writeArtifact(t, tt.size)

			err := p.Validate(artifact)
			if tt.wantErr {
				assert.ErrorIs(t, err, failure.ErrInvalidArtifact)
			} else {
				assert.NoError(t, err)
			}
			assert.FileExists(t, artifact.LocalPath, "validation never deletes")
		})
	}

	t.Run("missing_file", func(t *testing.T) {
		err := p.Validate(dump.Artifact{LocalPath: filepath.Join(t.TempDir(), "nope.sql.gz")})
		assert.ErrorIs(t, err, failure.ErrInvalidArtifact)
	})

	t.Run("custom_threshold", func(t *testing.T) {
		strict := NewPipeline(Options{MinBytes: 4096, Logger: zerolog.Nop()})
		assert.ErrorIs(t, strict.Validate(writeArtifact(t, 2048)), failure.ErrInvalidArtifact)
	})

	t.Run("threshold_never_below_1KiB", func(t *testing.T) {
		lax := NewPipeline(Options{MinBytes: 10, Logger: zerolog.Nop()})
		artifact := writeArtifact(t, 500)

		assert.ErrorIs(t, lax.Validate(artifact), failure.ErrInvalidArtifact)
		assert.FileExists(t, artifact.LocalPath)
	})
}

func TestPipeline_Upload(t *testing.T) {
	ctx := context.Background()
	cfg := testRunConfig(t)

	t.Run("private_put_and_verify", func(t *testing.T) {
		artifact := writeArtifact(t, 2048)
		store := mocks.NewMockObjectStore(t)
		store.On("Name").Return("s3:acme-backups-dev")
		store.On("Put", mock.Anything, artifact.LocalPath, "acme-dev/05-03-2024.sql.gz", storage.Private).Return(nil).Once()
		store.On("Stat", mock.Anything, "acme-dev/05-03-2024.sql.gz").
			Return(&storage.ObjectInfo{Key: "acme-dev/05-03-2024.sql.gz", Size: 2048}, nil).Once()
		store.On("Close").Return(nil).Once()

		var seen storage.Config
		p := NewPipeline(Options{
			Open:           store.Opener(&seen),
			StorageType:    "s3",
			StorageOptions: map[string]interface{}{"region": "us-east-1"},
			Verify:         true,
			Logger:         zerolog.Nop(),
		})

		dest, err := p.Upload(ctx, cfg, artifact)
		require.NoError(t, err)

		assert.Equal(t, "acme-backups-dev", dest.Bucket)
		assert.Equal(t, "acme-dev/05-03-2024.sql.gz", dest.Key)
		assert.Equal(t, "s3:acme-backups-dev", dest.Store)

		assert.Equal(t, "s3", seen.Type)
		assert.Equal(t, "acme-backups-dev", seen.Bucket)
		assert.Equal(t, "AK", seen.AccessKey)
		assert.Equal(t, "SK", seen.SecretKey)
		assert.FileExists(t, artifact.LocalPath, "upload never deletes")
	})

	t.Run("put_failure_keeps_file", func(t *testing.T) {
		artifact := writeArtifact(t, 2048)
		store := mocks.NewMockObjectStore(t)
		store.On("Name").Return("s3:acme-backups-dev")
		store.On("Put", mock.Anything, mock.Anything, mock.Anything, storage.Private).
			Return(storage.WrapError("s3:acme-backups-dev", "upload", storage.ErrConnFailed)).Once()
		store.On("Close").Return(nil).Once()

		p := NewPipeline(Options{Open: store.Opener(nil), StorageType: "s3", Verify: true, Logger: zerolog.Nop()})

		_, err := p.Upload(ctx, cfg, artifact)
		assert.ErrorIs(t, err, failure.ErrUpload)
		assert.ErrorIs(t, err, storage.ErrConnFailed)
		assert.FileExists(t, artifact.LocalPath)
	})

	t.Run("size_mismatch", func(t *testing.T) {
		artifact := writeArtifact(t, 2048)
		store := mocks.NewMockObjectStore(t)
		store.On("Name").Return("s3:acme-backups-dev")
		store.On("Put", mock.Anything, mock.Anything, mock.Anything, storage.Private).Return(nil).Once()
		store.On("Stat", mock.Anything, mock.Anything).Return(&storage.ObjectInfo{Size: 1000}, nil).Once()
		store.On("Close").Return(nil).Once()

		p := NewPipeline(Options{Open: store.Opener(nil), StorageType: "s3", Verify: true, Logger: zerolog.Nop()})

		_, err := p.Upload(ctx, cfg, artifact)
		assert.ErrorIs(t, err, failure.ErrUpload)
		assert.ErrorIs(t, err, storage.ErrSizeMismatch)
	})

	t.Run("verify_disabled_skips_stat", func(t *testing.T) {
		artifact := writeArtifact(t, 2048)
		store := mocks.NewMockObjectStore(t)
		store.On("Name").Return("s3:acme-backups-dev")
		store.On("Put", mock.Anything, mock.Anything, mock.Anything, storage.Private).Return(nil).Once()
		store.On("Close").Return(nil).Once()

		p := NewPipeline(Options{Open: store.Opener(nil), StorageType: "s3", Logger: zerolog.Nop()})

		_, err := p.Upload(ctx, cfg, artifact)
		require.NoError(t, err)
		store.AssertNotCalled(t, "Stat", mock.Anything, mock.Anything)
	})

	t.Run("open_failure", func(t *testing.T) {
		artifact := writeArtifact(t, 2048)
		p := NewPipeline(Options{
			Open: func(ctx context.Context, c storage.Config) (storage.ObjectStore, error) {
				return nil, storage.WrapError(c.Name(), "init", storage.ErrAuthFailed)
			},
			StorageType: "s3",
			Logger:      zerolog.Nop(),
		})

		_, err := p.Upload(ctx, cfg, artifact)
		assert.ErrorIs(t, err, failure.ErrUpload)
		assert.ErrorIs(t, err, storage.ErrAuthFailed)
		assert.FileExists(t, artifact.LocalPath)
	})

	t.Run("timeout_reaches_store", func(t *testing.T) {
		artifact := writeArtifact(t, 2048)
		store := mocks.NewMockObjectStore(t)
		store.On("Name").Return("s3:acme-backups-dev")
		store.On("Put", mock.Anything, mock.Anything, mock.Anything, storage.Private).
			Return(func(ctx context.Context, _ string, _ string, _ storage.Visibility) error {
				<-ctx.Done()
				return ctx.Err()
			}).Once()
		store.On("Close").Return(nil).Once()

		p := NewPipeline(Options{
			Open:          store.Opener(nil),
			StorageType:   "s3",
			UploadTimeout: 20 * time.Millisecond,
			Logger:        zerolog.Nop(),
		})

		_, err := p.Upload(ctx, cfg, artifact)
		assert.ErrorIs(t, err, failure.ErrUpload)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestPipeline_Cleanup(t *testing.T) {
	p := NewPipeline(Options{Logger: zerolog.Nop()})

	artifact := writeArtifact(t, 2048)
	require.NoError(t, p.Cleanup(artifact))
	assert.NoFileExists(t, artifact.LocalPath)

	// already gone is fine
	assert.NoError(t, p.Cleanup(artifact))
}

func TestPipeline_StorageConfig(t *testing.T) {
	p := NewPipeline(Options{StorageType: "minio", StorageOptions: map[string]interface{}{"endpoint": "minio:9000"}})
	sc := p.StorageConfig(testRunConfig(t))

	assert.Equal(t, "minio:acme-backups-dev", sc.Name())
	assert.Equal(t, "minio:9000", sc.Options["endpoint"])
}
