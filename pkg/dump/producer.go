package dump

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/williamokano/dbb/pkg/config"
	"github.com/williamokano/dbb/pkg/failure"
)

// Options configures a Producer
type Options struct {
	Runner          DumpRunner
	Compressor      Compressor
	Preflight       Preflight // optional
	Dir             string
	FilePrefix      string
	DumpTimeout     time.Duration
	CompressTimeout time.Duration
	// LookPath verifies external binaries before anything runs; nil skips the check
	LookPath func(file string) (string, error)
	Logger   zerolog.Logger
}

// Producer dumps the configured database and compresses the result into one artifact
type Producer struct {
	opts Options
}

// NewProducer creates a producer
func NewProducer(opts Options) *Producer {
	return &Producer{opts: opts}
}

// NewProducerFromSettings wires the runner, compressor and preflight named in settings
func NewProducerFromSettings(settings *config.Settings, logger zerolog.Logger) (*Producer, error) {
	runner, err := NewRunner(settings.Dump.Engine, settings.GetDumpBinary(), settings.Dump.ExtraArgs)
	if err != nil {
		return nil, err
	}

	compressor, err := NewCompressor(settings.Dump.Compressor, settings.Dump.CompressionLevel)
	if err != nil {
		return nil, err
	}

	opts := Options{
		Runner:          runner,
		Compressor:      compressor,
		Dir:             settings.GetArtifactDir(),
		FilePrefix:      settings.Artifact.FilePrefix,
		DumpTimeout:     settings.Dump.Timeout,
		CompressTimeout: settings.Dump.CompressTimeout,
		Logger:          logger,
	}
	if settings.Dump.Preflight {
		opts.Preflight = NewSQLPreflight(settings.Dump.Engine)
	}
	if settings.Dump.CheckBinaries {
		opts.LookPath = exec.LookPath
	}

	return NewProducer(opts), nil
}

// ArtifactPath returns where the artifact for runDate is written
func (p *Producer) ArtifactPath(runDate string) string {
	return ArtifactPath(p.opts.Dir, p.opts.FilePrefix, runDate)
}

// Leftovers lists artifacts of earlier run dates still waiting in the artifact directory
func (p *Producer) Leftovers(runDate string) ([]Artifact, error) {
	return FindLeftovers(p.opts.Dir, p.opts.FilePrefix, runDate)
}

// Produce runs Dump then Compress
func (p *Producer) Produce(ctx context.Context, cfg config.RunConfig, startedAt time.Time) (Artifact, error) {
	runDate := FormatRunDate(startedAt)

	sqlPath, err := p.Dump(ctx, cfg, runDate)
	if err != nil {
		return Artifact{}, err
	}

	return p.Compress(ctx, sqlPath, runDate)
}

// Dump writes the uncompressed dump for runDate and returns its path.
// A failed dump leaves no .sql file behind.
func (p *Producer) Dump(ctx context.Context, cfg config.RunConfig, runDate string) (string, error) {
	log := p.opts.Logger.With().Str("run_date", runDate).Logger()

	if err := p.checkBinaries(); err != nil {
		return "", failure.Dump(err, "required binary missing")
	}

	if p.opts.Preflight != nil {
		log.Debug().Msg("running database preflight")
		if err := p.opts.Preflight.Check(ctx, cfg); err != nil {
			return "", failure.Dump(err, "preflight failed for %s", cfg.DatabaseName())
		}
	}

	if err := os.MkdirAll(p.opts.Dir, 0750); err != nil {
		return "", failure.Dump(err, "failed to create artifact directory %s", p.opts.Dir)
	}

	sqlPath := SQLPath(p.opts.Dir, p.opts.FilePrefix, runDate)

	dumpCtx, cancel := withOptionalTimeout(ctx, p.opts.DumpTimeout)
	defer cancel()

	start := time.Now()
	log.Info().
		Str("binary", p.opts.Runner.Binary()).
		Str("output", sqlPath).
		Msg("dumping database")

	if err := p.opts.Runner.Dump(dumpCtx, cfg, sqlPath); err != nil {
		removeQuietly(sqlPath, log)
		if stale := p.ArtifactPath(runDate); fileExists(stale) {
			log.Warn().Str("artifact", stale).Msg("earlier same-day artifact left in place")
		}
		return "", failure.Dump(err, "dump of %s failed", cfg.DatabaseName())
	}

	info, err := os.Stat(sqlPath)
	if err != nil {
		return "", failure.Dump(err, "dump file missing after %s", p.opts.Runner.Binary())
	}

	log.Info().
		Int64("size_bytes", info.Size()).
		Dur("duration", time.Since(start)).
		Msg("database dumped")

	return sqlPath, nil
}

// Compress compresses sqlPath into the run's artifact
func (p *Producer) Compress(ctx context.Context, sqlPath, runDate string) (Artifact, error) {
	log := p.opts.Logger.With().Str("run_date", runDate).Logger()

	compressCtx, cancel := withOptionalTimeout(ctx, p.opts.CompressTimeout)
	defer cancel()

	start := time.Now()
	gzPath, err := p.opts.Compressor.Compress(compressCtx, sqlPath)
	if err != nil {
		log.Warn().Str("file", sqlPath).Msg("compression failed, keeping uncompressed dump")
		return Artifact{}, failure.Dump(err, "compression failed")
	}

	info, err := os.Stat(gzPath)
	if err != nil {
		return Artifact{}, failure.Dump(err, "artifact missing after compression")
	}

	artifact := Artifact{
		LocalPath: gzPath,
		RunDate:   runDate,
		SizeBytes: info.Size(),
	}

	log.Info().
		Str("artifact", artifact.LocalPath).
		Int64("size_bytes", artifact.SizeBytes).
		Dur("duration", time.Since(start)).
		Msg("dump compressed")

	return artifact, nil
}

func (p *Producer) checkBinaries() error {
	if p.opts.LookPath == nil {
		return nil
	}

	for _, bin := range []string{p.opts.Runner.Binary(), p.opts.Compressor.Binary()} {
		if bin == "" {
			continue
		}
		if _, err := p.opts.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found in PATH: %w", bin, err)
		}
	}
	return nil
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func removeQuietly(path string, log zerolog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("file", path).Msg("failed to remove partial dump")
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
