package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Document is the part of the provider output a run needs
type Document struct {
	Namespace  string
	BucketBase string // full bucket name or bucket prefix, before the route suffix
	AccessKey  string
	SecretKey  string
}

// Provider yields the application identity and storage credentials
type Provider interface {
	Fetch(ctx context.Context) (*Document, error)
}

type rawAWS struct {
	S3Bucket     string `json:"s3Bucket"`
	BucketPrefix string `json:"bucketPrefix"`
	AccessKey    string `json:"accessKey"`
	SecretKey    string `json:"secretKey"`
}

type rawApp struct {
	Namespace string `json:"namespace"`
	AWS       rawAWS `json:"aws"`
}

type rawDocument struct {
	App *rawApp `json:"app"`
	rawApp
}

// ParseDocument validates and decodes provider output
func ParseDocument(raw []byte) (*Document, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("provider printed nothing")
	}

	if err := ValidateDocument(raw); err != nil {
		return nil, err
	}

	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode provider document: %w", err)
	}

	app := doc.rawApp
	if doc.App != nil {
		app = *doc.App
	}

	bucket := app.AWS.S3Bucket
	if bucket == "" {
		bucket = app.AWS.BucketPrefix
	}

	return &Document{
		Namespace:  app.Namespace,
		BucketBase: bucket,
		AccessKey:  app.AWS.AccessKey,
		SecretKey:  app.AWS.SecretKey,
	}, nil
}

// CommandProvider runs an external command that prints the document on stdout
type CommandProvider struct {
	argv    []string
	dir     string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewCommandProvider creates a provider running argv inside dir
func NewCommandProvider(argv []string, dir string, timeout time.Duration, logger zerolog.Logger) *CommandProvider {
	return &CommandProvider{
		argv:    argv,
		dir:     dir,
		timeout: timeout,
		logger:  logger,
	}
}

// Fetch runs the command and parses its output
func (p *CommandProvider) Fetch(ctx context.Context) (*Document, error) {
	if len(p.argv) == 0 {
		return nil, fmt.Errorf("provider command is empty")
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...)
	cmd.Dir = p.dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.logger.Debug().Strs("command", p.argv).Msg("asking provider for app configuration")

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("provider timed out after %s: %w", p.timeout, ctx.Err())
		}
		return nil, fmt.Errorf("provider command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	if stderr.Len() > 0 {
		p.logger.Warn().Str("stderr", strings.TrimSpace(stderr.String())).Msg("provider wrote to stderr")
	}

	return ParseDocument(stdout.Bytes())
}
