package storage

import (
	"context"
	"fmt"
	"sort"
)

// BackendConstructor is a function that opens a store
type BackendConstructor func(ctx context.Context, cfg Config) (ObjectStore, error)

// Opener opens the store described by cfg
type Opener func(ctx context.Context, cfg Config) (ObjectStore, error)

var backendRegistry = make(map[string]BackendConstructor)

// RegisterBackend registers a backend constructor
func RegisterBackend(backendType string, constructor BackendConstructor) {
	backendRegistry[backendType] = constructor
}

// RegisteredTypes lists the backend types linked into the binary
func RegisteredTypes() []string {
	types := make([]string, 0, len(backendRegistry))
	for t := range backendRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Open instantiates a store from config
func Open(ctx context.Context, cfg Config) (ObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, WrapError(cfg.Name(), "open", fmt.Errorf("%w: empty bucket", ErrInvalidConfig))
	}

	constructor, ok := backendRegistry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend type: %s", ErrInvalidConfig, cfg.Type)
	}

	return constructor(ctx, cfg)
}
