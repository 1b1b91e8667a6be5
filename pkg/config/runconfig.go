package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// RunParams carries the values a RunConfig is built from
type RunParams struct {
	Namespace        string
	Environment      string
	DatabaseHost     string
	DatabasePort     int // 0 = engine default
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string
	BucketName       string
	KeyPrefix        string
	StorageAccessKey string
	StorageSecretKey string
	WorkDir          string
	Route            Route
}

// RunConfig is the fully resolved configuration of one run. It is built once by the
// Resolver and only read afterwards; fields are reachable through accessors only.
type RunConfig struct {
	p RunParams
}

// NewRunConfig validates params and freezes them
func NewRunConfig(p RunParams) (RunConfig, error) {
	required := []struct {
		name  string
		value string
	}{
		{"namespace", p.Namespace},
		{"environment", p.Environment},
		{"database host", p.DatabaseHost},
		{"database name", p.DatabaseName},
		{"database user", p.DatabaseUser},
		{"database password", p.DatabasePassword},
		{"bucket name", p.BucketName},
		{"key prefix", p.KeyPrefix},
		{"storage access key", p.StorageAccessKey},
		{"storage secret key", p.StorageSecretKey},
	}

	var missing []string
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return RunConfig{}, fmt.Errorf("empty required fields: %s", strings.Join(missing, ", "))
	}

	// Both end up as a single key segment: <prefix>/<date>.sql.gz
	for _, field := range []struct {
		name  string
		value string
	}{
		{"namespace", p.Namespace},
		{"key prefix", p.KeyPrefix},
	} {
		if !isKeySegment(field.value) {
			return RunConfig{}, fmt.Errorf("%s must be a single path segment: %q", field.name, field.value)
		}
	}

	if p.DatabasePort < 0 || p.DatabasePort > 65535 {
		return RunConfig{}, fmt.Errorf("database port out of range: %d", p.DatabasePort)
	}

	return RunConfig{p: p}, nil
}

func isKeySegment(s string) bool {
	return s != "." && !strings.ContainsAny(s, "/\\") && !strings.Contains(s, "..")
}

func (c RunConfig) Namespace() string        { return c.p.Namespace }
func (c RunConfig) Environment() string      { return c.p.Environment }
func (c RunConfig) DatabaseHost() string     { return c.p.DatabaseHost }
func (c RunConfig) DatabasePort() int        { return c.p.DatabasePort }
func (c RunConfig) DatabaseName() string     { return c.p.DatabaseName }
func (c RunConfig) DatabaseUser() string     { return c.p.DatabaseUser }
func (c RunConfig) DatabasePassword() string { return c.p.DatabasePassword }
func (c RunConfig) BucketName() string       { return c.p.BucketName }
func (c RunConfig) KeyPrefix() string        { return c.p.KeyPrefix }
func (c RunConfig) StorageAccessKey() string { return c.p.StorageAccessKey }
func (c RunConfig) StorageSecretKey() string { return c.p.StorageSecretKey }
func (c RunConfig) WorkDir() string          { return c.p.WorkDir }
func (c RunConfig) Route() Route             { return c.p.Route }

// MarshalZerologObject logs the run target without secrets
func (c RunConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Str("namespace", c.p.Namespace).
		Str("environment", c.p.Environment).
		Str("db_host", c.p.DatabaseHost).
		Str("db_name", c.p.DatabaseName).
		Str("db_user", c.p.DatabaseUser).
		Str("bucket", c.p.BucketName).
		Str("key_prefix", c.p.KeyPrefix)
	if c.p.DatabasePort > 0 {
		e.Int("db_port", c.p.DatabasePort)
	}
}
