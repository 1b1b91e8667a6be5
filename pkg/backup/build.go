package backup

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/williamokano/dbb/pkg/archive"
	"github.com/williamokano/dbb/pkg/config"
	"github.com/williamokano/dbb/pkg/dump"
	"github.com/williamokano/dbb/pkg/failure"
	"github.com/williamokano/dbb/pkg/logger"

	// Import backends to register them
	_ "github.com/williamokano/dbb/pkg/storage/backblaze"
	_ "github.com/williamokano/dbb/pkg/storage/local"
	_ "github.com/williamokano/dbb/pkg/storage/minio"
	_ "github.com/williamokano/dbb/pkg/storage/s3"
	_ "github.com/williamokano/dbb/pkg/storage/ssh"
)

// NewResolverFromSettings wires the provider command and the process environment
func NewResolverFromSettings(settings *config.Settings, log zerolog.Logger) *config.Resolver {
	provider := config.NewCommandProvider(
		settings.GetProviderCommand(),
		settings.GetWorkDir(),
		settings.Provider.Timeout,
		log,
	)
	return config.NewResolver(settings, provider, os.LookupEnv, log)
}

// NewRunnerFromSettings wires a runner from tool settings
func NewRunnerFromSettings(settings *config.Settings, status *logger.Status, log zerolog.Logger) (*Runner, error) {
	producer, err := dump.NewProducerFromSettings(settings, log)
	if err != nil {
		return nil, failure.Configuration(err, "invalid dump settings")
	}

	return NewRunner(
		NewResolverFromSettings(settings, log),
		producer,
		archive.NewPipelineFromSettings(settings, log),
		status,
		log,
	), nil
}
