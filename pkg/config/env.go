package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/subosito/gotenv"
)

// LookupFunc reads one environment variable; os.LookupEnv in production
type LookupFunc func(key string) (string, bool)

// Environment layers the local .env file under the ambient environment.
// Values from the file are defaults only: a variable already present in the
// ambient environment, even empty, is never replaced.
type Environment struct {
	lookup   LookupFunc
	defaults map[string]string
}

// LoadEnvironment reads envFile when it exists. A missing file is not an error.
func LoadEnvironment(lookup LookupFunc, envFile string) (*Environment, bool, error) {
	env := &Environment{lookup: lookup, defaults: map[string]string{}}
	if envFile == "" {
		return env, false, nil
	}

	info, err := os.Stat(envFile)
	if errors.Is(err, fs.ErrNotExist) {
		return env, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat env file: %w", err)
	}
	if info.IsDir() {
		return nil, false, fmt.Errorf("env file %s is a directory", envFile)
	}

	values, err := gotenv.Read(envFile)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse env file %s: %w", envFile, err)
	}
	env.defaults = values

	return env, true, nil
}

// Get returns the effective value of key
func (e *Environment) Get(key string) string {
	if value, ok := e.lookup(key); ok {
		return value
	}
	return e.defaults[key]
}

// Require returns the values of keys, failing with every missing or blank key listed.
// Values are returned verbatim; surrounding whitespace can be part of a password.
func (e *Environment) Require(keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	var missing []string

	for _, key := range keys {
		value := e.Get(key)
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
			continue
		}
		values[key] = value
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return values, nil
}
