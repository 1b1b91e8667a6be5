package config

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/williamokano/dbb/pkg/failure"
)

// Resolver merges provider output, the environment and the local .env file into a RunConfig.
// It is the only component that reads environment state.
type Resolver struct {
	settings *Settings
	provider Provider
	lookup   LookupFunc
	logger   zerolog.Logger
}

// NewResolver creates a resolver; lookup is usually os.LookupEnv
func NewResolver(settings *Settings, provider Provider, lookup LookupFunc, logger zerolog.Logger) *Resolver {
	return &Resolver{
		settings: settings,
		provider: provider,
		lookup:   lookup,
		logger:   logger,
	}
}

// Resolve produces the run configuration or a ConfigurationError
func (r *Resolver) Resolve(ctx context.Context) (RunConfig, error) {
	workDir := r.settings.GetWorkDir()
	log := r.logger.With().Str("workdir", workDir).Logger()

	// Routing problems are detectable before anything external runs
	routes, err := r.settings.GetRoutes()
	if err != nil {
		return RunConfig{}, failure.Configuration(err, "invalid route table")
	}

	doc, err := r.provider.Fetch(ctx)
	if err != nil {
		return RunConfig{}, failure.Configuration(err, "failed to read app configuration")
	}

	envFile := r.settings.GetEnvFile()
	env, loaded, err := LoadEnvironment(r.lookup, envFile)
	if err != nil {
		return RunConfig{}, failure.Configuration(err, "failed to load local environment file")
	}
	if loaded {
		log.Info().Str("env_file", envFile).Msg("loaded local environment file")
	} else {
		log.Debug().Str("env_file", envFile).Msg("no local environment file")
	}

	names := r.settings.Env
	values, err := env.Require(names.StageVar, names.HostVar, names.NameVar, names.UserVar, names.PasswordVar)
	if err != nil {
		return RunConfig{}, failure.Configuration(err, "incomplete environment")
	}

	port := 0
	if raw := strings.TrimSpace(env.Get(names.PortVar)); raw != "" {
		port, err = strconv.Atoi(raw)
		if err != nil {
			return RunConfig{}, failure.Configuration(err, "%s must be a number", names.PortVar)
		}
	}

	stage := strings.TrimSpace(values[names.StageVar])
	route, err := routes.Match(stage)
	if err != nil {
		return RunConfig{}, failure.Configuration(err, "cannot route stage")
	}

	if route.Inverted {
		log.Warn().
			Str("stage", stage).
			Str("bucket_suffix", route.BucketSuffix).
			Str("key_suffix", route.KeySuffix).
			Msg("stage is routed to a suffix labeled for another stage")
	}

	cfg, err := NewRunConfig(RunParams{
		Namespace:        doc.Namespace,
		Environment:      stage,
		DatabaseHost:     strings.TrimSpace(values[names.HostVar]),
		DatabasePort:     port,
		DatabaseName:     strings.TrimSpace(values[names.NameVar]),
		DatabaseUser:     strings.TrimSpace(values[names.UserVar]),
		DatabasePassword: values[names.PasswordVar],
		BucketName:       route.BucketFor(doc.BucketBase),
		KeyPrefix:        route.KeyPrefixFor(doc.Namespace),
		StorageAccessKey: doc.AccessKey,
		StorageSecretKey: doc.SecretKey,
		WorkDir:          workDir,
		Route:            route,
	})
	if err != nil {
		return RunConfig{}, failure.Configuration(err, "incomplete run configuration")
	}

	log.Info().EmbedObject(cfg).Msg("resolved run configuration")

	return cfg, nil
}
