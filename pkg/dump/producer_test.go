package dump

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamokano/dbb/pkg/config"
	"github.com/williamokano/dbb/pkg/failure"
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

// fakeRunner writes a fixed payload instead of running a dump utility
type fakeRunner struct {
	payload []byte
	err     error
	calls   int
}

func (f *fakeRunner) Binary() string { return "fake-dump" }

func (f *fakeRunner) Dump(ctx context.Context, cfg config.RunConfig, outPath string) error {
	f.calls++
	if err := os.WriteFile(outPath, f.payload, 0600); err != nil {
		return err
	}
	return f.err
}

type fakePreflight struct {
	err error
}

func (f fakePreflight) Check(ctx context.Context, cfg config.RunConfig) error { return f.err }

type failingCompressor struct{}

func (failingCompressor) Binary() string { return "" }
func (failingCompressor) Compress(ctx context.Context, sourcePath string) (string, error) {
	return "", errors.New("disk full")
}

func sqlPayload(n int) []byte {
	var buf bytes.Buffer
	for i := 0; buf.Len() < n; i++ {
		fmt.Fprintf(&buf, "INSERT INTO `t` VALUES (%d,'row-%d');\n", i, i)
	}
	return buf.Bytes()
}

var runStart = time.Date(2024, 3, 5, 3, 0, 0, 0, time.Local)

func newTestProducer(t *testing.T, runner DumpRunner, compressor Compressor) (*Producer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")
	return NewProducer(Options{
		Runner:     runner,
		Compressor: compressor,
		Dir:        dir,
		FilePrefix: "dump_",
		Logger:     zerolog.Nop(),
	}), dir
}

func TestProducer_Produce(t *testing.T) {
	ctx := context.Background()

	t.Run("success_leaves_exactly_one_file", func(t *testing.T) {
		payload := sqlPayload(64 * 1024)
		producer, dir := newTestProducer(t, &fakeRunner{payload: payload}, NewBuiltinGzip(6))

		artifact, err := producer.Produce(ctx, testRunConfig(t), runStart)
		require.NoError(t, err)

		assert.Equal(t, "05-03-2024", artifact.RunDate)
		assert.Equal(t, filepath.Join(dir, "dump_05-03-2024.sql.gz"), artifact.LocalPath)
		assert.Equal(t, producer.ArtifactPath("05-03-2024"), artifact.LocalPath)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)

		info, err := os.Stat(artifact.LocalPath)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), artifact.SizeBytes)

		f, err := os.Open(artifact.LocalPath)
		require.NoError(t, err)
		defer f.Close()
		zr, err := gzip.NewReader(f)
		require.NoError(t, err)
		got, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("same_day_rerun_overwrites", func(t *testing.T) {
		producer, dir := newTestProducer(t, &fakeRunner{payload: sqlPayload(8 * 1024)}, NewBuiltinGzip(6))

		first, err := producer.Produce(ctx, testRunConfig(t), runStart)
		require.NoError(t, err)
		second, err := producer.Produce(ctx, testRunConfig(t), runStart.Add(5*time.Hour))
		require.NoError(t, err)

		assert.Equal(t, first.LocalPath, second.LocalPath)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("dump_failure_leaves_no_file", func(t *testing.T) {
		runner := &fakeRunner{payload: []byte("-- partial"), err: errors.New("mysqldump exited with code 2")}
		producer, dir := newTestProducer(t, runner, NewBuiltinGzip(6))

		_, err := producer.Produce(ctx, testRunConfig(t), runStart)
		require.Error(t, err)
		assert.ErrorIs(t, err, failure.ErrDump)

		assert.NoFileExists(t, SQLPath(dir, "dump_", "05-03-2024"))
		assert.NoFileExists(t, ArtifactPath(dir, "dump_", "05-03-2024"))
	})

	t.Run("dump_failure_keeps_earlier_artifact", func(t *testing.T) {
		var logs bytes.Buffer
		runner := &fakeRunner{payload: []byte("-- partial"), err: errors.New("mysqldump exited with code 2")}
		producer, dir := newTestProducer(t, runner, NewBuiltinGzip(6))
		producer.opts.Logger = zerolog.New(&logs)

		stale := ArtifactPath(dir, "dump_", "05-03-2024")
		require.NoError(t, os.MkdirAll(dir, 0750))
		require.NoError(t, os.WriteFile(stale, []byte("earlier run"), 0600))

		_, err := producer.Produce(ctx, testRunConfig(t), runStart)
		assert.ErrorIs(t, err, failure.ErrDump)

		data, err := os.ReadFile(stale)
		require.NoError(t, err)
		assert.Equal(t, "earlier run", string(data))
		assert.Contains(t, logs.String(), `"level":"warn"`)
		assert.Contains(t, logs.String(), "earlier same-day artifact left in place")
	})

	t.Run("compression_failure_keeps_dump", func(t *testing.T) {
		producer, dir := newTestProducer(t, &fakeRunner{payload: sqlPayload(2048)}, failingCompressor{})

		_, err := producer.Produce(ctx, testRunConfig(t), runStart)
		assert.ErrorIs(t, err, failure.ErrDump)
		assert.FileExists(t, SQLPath(dir, "dump_", "05-03-2024"))
		assert.NoFileExists(t, ArtifactPath(dir, "dump_", "05-03-2024"))
	})

	t.Run("compression_timeout_leaves_no_partial_artifact", func(t *testing.T) {
		slowGzip := writeScript(t, "printf 'truncated gzip stream'\nexec sleep 5")
		payload := sqlPayload(1 << 20)
		producer, dir := newTestProducer(t, &fakeRunner{payload: payload}, NewGzipCommand(slowGzip, 9))
		producer.opts.CompressTimeout = 200 * time.Millisecond

		start := time.Now()
		_, err := producer.Produce(ctx, testRunConfig(t), runStart)
		require.Error(t, err)
		assert.ErrorIs(t, err, failure.ErrDump)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 4*time.Second)

		assert.NoFileExists(t, ArtifactPath(dir, "dump_", "05-03-2024"))
		data, err := os.ReadFile(SQLPath(dir, "dump_", "05-03-2024"))
		require.NoError(t, err)
		assert.Equal(t, payload, data)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temp file must not survive")
	})

	t.Run("preflight_failure_skips_dump", func(t *testing.T) {
		runner := &fakeRunner{payload: sqlPayload(2048)}
		producer, _ := newTestProducer(t, runner, NewBuiltinGzip(6))
		producer.opts.Preflight = fakePreflight{err: errors.New("connection refused")}

		_, err := producer.Produce(ctx, testRunConfig(t), runStart)
		assert.ErrorIs(t, err, failure.ErrDump)
		assert.Equal(t, 0, runner.calls)
	})

	t.Run("missing_binary_skips_dump", func(t *testing.T) {
		runner := &fakeRunner{payload: sqlPayload(2048)}
		producer, _ := newTestProducer(t, runner, NewGzipCommand("gzip", 6))
		producer.opts.LookPath = func(file string) (string, error) {
			if file == "gzip" {
				return "", errors.New("executable file not found in $PATH")
			}
			return "/usr/bin/" + file, nil
		}

		_, err := producer.Produce(ctx, testRunConfig(t), runStart)
		require.Error(t, err)
		assert.ErrorIs(t, err, failure.ErrDump)
		assert.Contains(t, err.Error(), "gzip not found")
		assert.Equal(t, 0, runner.calls)
	})
}

func TestNewProducerFromSettings(t *testing.T) {
	settings, err := config.LoadSettings(config.NewViper(), "")
	require.NoError(t, err)
	settings.WorkDir = t.TempDir()
	settings.Dump.Engine = config.EnginePostgres
	settings.Dump.Compressor = config.CompressorBuiltin
	settings.Dump.Preflight = true

	producer, err := NewProducerFromSettings(settings, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "pg_dump", producer.opts.Runner.Binary())
	assert.Equal(t, "", producer.opts.Compressor.Binary())
	assert.NotNil(t, producer.opts.Preflight)
	assert.NotNil(t, producer.opts.LookPath)
	assert.Equal(t, filepath.Join(settings.WorkDir, "db", "dump_05-03-2024.sql.gz"), producer.ArtifactPath("05-03-2024"))
}
