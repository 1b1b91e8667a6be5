package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Dump engines and compressors understood by the producer
const (
	EngineMySQL    = "mysql"
	EnginePostgres = "postgres"

	CompressorGzip    = "gzip"
	CompressorBuiltin = "builtin"
)

// MinArtifactBytes is the smallest plausible compressed dump. Anything below
// it is an invalid artifact whatever the settings say.
const MinArtifactBytes = 1024

// Settings is the tool's own configuration: how to reach the collaborators of a run.
// It never carries credentials; those come from the provider document and the environment.
type Settings struct {
	LogLevel  string           `mapstructure:"log_level" json:"log_level"`   // debug, info, warn, error (default: info)
	LogFormat string           `mapstructure:"log_format" json:"log_format"` // json, console (default: json)
	NoColor   bool             `mapstructure:"no_color" json:"no_color"`
	WorkDir   string           `mapstructure:"workdir" json:"workdir"` // project root; .env, cli and db/ live here
	Provider  ProviderSettings `mapstructure:"provider" json:"provider"`
	Env       EnvSettings      `mapstructure:"env" json:"env"`
	Dump      DumpSettings     `mapstructure:"dump" json:"dump"`
	Artifact  ArtifactSettings `mapstructure:"artifact" json:"artifact"`
	Routing   RoutingSettings  `mapstructure:"routing" json:"routing"`
	Storage   StorageSettings  `mapstructure:"storage" json:"storage"`
}

// ProviderSettings describes the external configuration command
type ProviderSettings struct {
	Command []string      `mapstructure:"command" json:"command"` // argv; "{workdir}" is substituted
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// EnvSettings names the environment variables read by the resolver
type EnvSettings struct {
	File        string `mapstructure:"file" json:"file"` // relative to workdir unless absolute
	StageVar    string `mapstructure:"stage_var" json:"stage_var"`
	HostVar     string `mapstructure:"host_var" json:"host_var"`
	PortVar     string `mapstructure:"port_var" json:"port_var"`
	NameVar     string `mapstructure:"name_var" json:"name_var"`
	UserVar     string `mapstructure:"user_var" json:"user_var"`
	PasswordVar string `mapstructure:"password_var" json:"password_var"`
}

// DumpSettings configures the snapshot producer
type DumpSettings struct {
	Engine           string        `mapstructure:"engine" json:"engine"` // mysql, postgres
	Binary           string        `mapstructure:"binary" json:"binary"` // defaults to mysqldump / pg_dump
	ExtraArgs        []string      `mapstructure:"extra_args" json:"extra_args"`
	Timeout          time.Duration `mapstructure:"timeout" json:"timeout"`
	Preflight        bool          `mapstructure:"preflight" json:"preflight"`
	CheckBinaries    bool          `mapstructure:"check_binaries" json:"check_binaries"`
	Compressor       string        `mapstructure:"compressor" json:"compressor"` // gzip, builtin
	CompressTimeout  time.Duration `mapstructure:"compress_timeout" json:"compress_timeout"`
	CompressionLevel int           `mapstructure:"compression_level" json:"compression_level"`
}

// ArtifactSettings controls where the artifact lives and when it is considered plausible
type ArtifactSettings struct {
	Dir        string `mapstructure:"dir" json:"dir"`
	FilePrefix string `mapstructure:"file_prefix" json:"file_prefix"`
	MinBytes   int64  `mapstructure:"min_bytes" json:"min_bytes"`
}

// RoutingSettings selects the stage route table
type RoutingSettings struct {
	Preset string  `mapstructure:"preset" json:"preset"`
	Routes []Route `mapstructure:"routes" json:"routes,omitempty"` // replaces the preset when non-empty
}

// StorageSettings configures the object store backend
type StorageSettings struct {
	Type    string                 `mapstructure:"type" json:"type"` // s3, minio, backblaze, ssh, local
	Options map[string]interface{} `mapstructure:"options" json:"options,omitempty"`
	Timeout time.Duration          `mapstructure:"timeout" json:"timeout"`
	Verify  bool                   `mapstructure:"verify" json:"verify"`
}

// NewViper returns a viper instance preloaded with defaults and DBB_* env overrides
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("no_color", false)
	v.SetDefault("workdir", "")

	v.SetDefault("provider.command", []string{"php", "{workdir}/cli/cli.php", "main", "appConfig"})
	v.SetDefault("provider.timeout", 30*time.Second)

	v.SetDefault("env.file", ".env")
	v.SetDefault("env.stage_var", "APP_ENV")
	v.SetDefault("env.host_var", "DB_HOST")
	v.SetDefault("env.port_var", "DB_PORT")
	v.SetDefault("env.name_var", "DB_NAME")
	v.SetDefault("env.user_var", "DB_USER")
	v.SetDefault("env.password_var", "DB_PASS")

	v.SetDefault("dump.engine", EngineMySQL)
	v.SetDefault("dump.binary", "")
	v.SetDefault("dump.extra_args", []string{})
	v.SetDefault("dump.timeout", time.Hour)
	v.SetDefault("dump.preflight", false)
	v.SetDefault("dump.check_binaries", true)
	v.SetDefault("dump.compressor", CompressorGzip)
	v.SetDefault("dump.compress_timeout", 30*time.Minute)
	v.SetDefault("dump.compression_level", 6)

	v.SetDefault("artifact.dir", "db")
	v.SetDefault("artifact.file_prefix", "dump_")
	v.SetDefault("artifact.min_bytes", MinArtifactBytes)

	v.SetDefault("routing.preset", PresetSafeguard)

	v.SetDefault("storage.type", "s3")
	v.SetDefault("storage.options", map[string]interface{}{"region": "us-east-1"})
	v.SetDefault("storage.timeout", 30*time.Minute)
	v.SetDefault("storage.verify", true)

	v.SetEnvPrefix("DBB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadSettings reads an optional settings file into v and decodes it.
// An explicit path must exist; without one, ./dbb.{yaml,json,toml} is used when present.
func LoadSettings(v *viper.Viper, path string) (*Settings, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	} else {
		v.SetConfigName("dbb")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read settings file: %w", err)
			}
		}
	}

	// Env overrides arrive as strings; decoding first lets viper coerce them
	// before the typed result is checked against the schema.
	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	if err := ValidateSettings(&settings); err != nil {
		return nil, err
	}

	return &settings, nil
}

// GetWorkDir returns the absolute working directory (defaults to the current directory)
func (s *Settings) GetWorkDir() string {
	dir := s.WorkDir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}

// GetEnvFile returns the absolute path of the local environment file
func (s *Settings) GetEnvFile() string {
	return s.inWorkDir(s.Env.File)
}

// GetArtifactDir returns the absolute directory artifacts are written to
func (s *Settings) GetArtifactDir() string {
	return s.inWorkDir(s.Artifact.Dir)
}

// GetProviderCommand returns the provider argv with {workdir} substituted
func (s *Settings) GetProviderCommand() []string {
	workDir := s.GetWorkDir()
	argv := make([]string, len(s.Provider.Command))
	for i, arg := range s.Provider.Command {
		argv[i] = strings.ReplaceAll(arg, "{workdir}", workDir)
	}
	return argv
}

// GetDumpBinary returns the dump utility for the configured engine
func (s *Settings) GetDumpBinary() string {
	if s.Dump.Binary != "" {
		return s.Dump.Binary
	}
	if s.Dump.Engine == EnginePostgres {
		return "pg_dump"
	}
	return "mysqldump"
}

// GetMinArtifactBytes returns the plausibility threshold, never below 1 KiB
func (s *Settings) GetMinArtifactBytes() int64 {
	if s.Artifact.MinBytes > MinArtifactBytes {
		return s.Artifact.MinBytes
	}
	return MinArtifactBytes
}

// GetRoutes returns the effective stage route table
func (s *Settings) GetRoutes() (RouteTable, error) {
	if len(s.Routing.Routes) > 0 {
		table := RouteTable(s.Routing.Routes)
		if err := table.Validate(); err != nil {
			return nil, err
		}
		return table, nil
	}
	return Preset(s.Routing.Preset)
}

func (s *Settings) inWorkDir(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.GetWorkDir(), p)
}
