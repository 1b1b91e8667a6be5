package backup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/williamokano/dbb/pkg/archive"
	"github.com/williamokano/dbb/pkg/config"
	"github.com/williamokano/dbb/pkg/dump"
	"github.com/williamokano/dbb/pkg/failure"
	"github.com/williamokano/dbb/pkg/logger"
	"github.com/williamokano/dbb/pkg/storage"
)

// State is a step of a run
type State string

const (
	StateStart      State = "start"
	StateResolved   State = "resolved"
	StateDumped     State = "dumped"
	StateCompressed State = "compressed"
	StateValidated  State = "validated"
	StateUploaded   State = "uploaded"
	StateCleaned    State = "cleaned"
	StateAborted    State = "aborted"
)

// Resolver builds the run configuration
type Resolver interface {
	Resolve(ctx context.Context) (config.RunConfig, error)
}

// Producer creates the compressed artifact
type Producer interface {
	Dump(ctx context.Context, cfg config.RunConfig, runDate string) (string, error)
	Compress(ctx context.Context, sqlPath, runDate string) (dump.Artifact, error)
	Leftovers(runDate string) ([]dump.Artifact, error)
}

// Archiver validates, uploads and removes the artifact
type Archiver interface {
	Validate(artifact dump.Artifact) error
	Upload(ctx context.Context, cfg config.RunConfig, artifact dump.Artifact) (archive.Destination, error)
	Cleanup(artifact dump.Artifact) error
}

// Result represents the outcome of one run
type Result struct {
	RunID     string
	State     State // StateCleaned or StateAborted
	AbortedAt State // last state reached before aborting
	Err       error
	Bucket    string
	Key       string
	Artifact  dump.Artifact
	Duration  time.Duration
}

// Success reports whether the run completed
func (r Result) Success() bool {
	return r.State == StateCleaned
}

// ExitCode is the process exit code for the run
func (r Result) ExitCode() int {
	return failure.ExitCode(r.Err)
}

// Runner drives one backup run: resolve, dump, compress, validate, upload, clean up
type Runner struct {
	resolver Resolver
	producer Producer
	archiver Archiver
	status   *logger.Status
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRunner creates a runner
func NewRunner(resolver Resolver, producer Producer, archiver Archiver, status *logger.Status, log zerolog.Logger) *Runner {
	if status == nil {
		status = logger.Discard()
	}
	return &Runner{
		resolver: resolver,
		producer: producer,
		archiver: archiver,
		status:   status,
		logger:   log,
		now:      time.Now,
	}
}

// Run executes the pipeline once. It never panics on expected failures; the
// returned Result carries the error and the state the run stopped in.
func (r *Runner) Run(ctx context.Context) Result {
	startedAt := r.now()
	res := Result{
		RunID: uuid.NewString(),
		State: StateStart,
	}
	log := r.logger.With().Str("run_id", res.RunID).Logger()

	abort := func(err error) Result {
		res.AbortedAt = res.State
		res.State = StateAborted
		res.Err = err
		res.Duration = time.Since(startedAt)

		event := log.Error().
			Err(err).
			Str("aborted_at", string(res.AbortedAt)).
			Int("exit_code", res.ExitCode()).
			Dur("duration", res.Duration)
		critical := errors.Is(err, failure.ErrUpload) && storage.IsCritical(err)
		if errors.Is(err, failure.ErrUpload) {
			event = event.Bool("retryable", !critical)
		}
		event.Msg("backup run aborted")

		r.status.Failure("Backup failed after %s: %v", res.AbortedAt, err)
		if critical {
			r.status.Failure("Storage rejected the credentials or settings; later runs will fail the same way")
		}
		return res
	}
	advance := func(s State) {
		res.State = s
		log.Debug().Str("state", string(s)).Msg("state reached")
	}

	log.Info().Time("started_at", startedAt).Msg("backup run started")

	cfg, err := r.resolver.Resolve(ctx)
	if err != nil {
		return abort(err)
	}
	advance(StateResolved)
	log = log.With().
		Str("namespace", cfg.Namespace()).
		Str("stage", cfg.Environment()).
		Logger()
	res.Bucket = cfg.BucketName()

	runDate := dump.FormatRunDate(startedAt)

	leftovers, err := r.producer.Leftovers(runDate)
	if err != nil {
		log.Warn().Err(err).Msg("failed to look for earlier artifacts")
	}
	for _, old := range leftovers {
		log.Warn().
			Str("artifact", old.LocalPath).
			Str("run_date", old.RunDate).
			Int64("size_bytes", old.SizeBytes).
			Msg("artifact of an earlier run was never uploaded")
	}

	r.status.Info("Dumping database %s", cfg.DatabaseName())
	sqlPath, err := r.producer.Dump(ctx, cfg, runDate)
	if err != nil {
		return abort(err)
	}
	advance(StateDumped)

	r.status.Info("Compressing dump")
	artifact, err := r.producer.Compress(ctx, sqlPath, runDate)
	if err != nil {
		return abort(err)
	}
	res.Artifact = artifact
	advance(StateCompressed)

	if err := r.archiver.Validate(artifact); err != nil {
		return abort(err)
	}
	advance(StateValidated)

	res.Key = archive.RemoteKey(cfg.KeyPrefix(), runDate)
	r.status.Info("Uploading %s to %s/%s", artifact.LocalPath, res.Bucket, res.Key)
	dest, err := r.archiver.Upload(ctx, cfg, artifact)
	if err != nil {
		return abort(err)
	}
	res.Key = dest.Key
	advance(StateUploaded)

	if err := r.archiver.Cleanup(artifact); err != nil {
		return abort(err)
	}
	advance(StateCleaned)

	res.Duration = time.Since(startedAt)
	log.Info().
		Str("bucket", res.Bucket).
		Str("key", res.Key).
		Int64("size_bytes", artifact.SizeBytes).
		Dur("duration", res.Duration).
		Msg("backup run completed")
	r.status.Success("Backup stored at %s/%s", res.Bucket, res.Key)

	return res
}
