package dump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/gzip"

	"github.com/williamokano/dbb/pkg/config"
)

// Compressor turns sourcePath into sourcePath+".gz", removing the source and
// replacing any stale compressed file of the same name. A failed compression
// keeps the source and never leaves a partial .gz.
type Compressor interface {
	Compress(ctx context.Context, sourcePath string) (string, error)
	// Binary is the external program used, empty for in-process compressors
	Binary() string
}

// GzipCommand shells out to gzip(1)
type GzipCommand struct {
	binary string
	level  int
}

// NewGzipCommand creates a gzip(1) based compressor
func NewGzipCommand(binary string, level int) *GzipCommand {
	if binary == "" {
		binary = "gzip"
	}
	return &GzipCommand{binary: binary, level: level}
}

func (g *GzipCommand) Binary() string { return g.binary }

// Compress pipes sourcePath through gzip -c. A killed gzip only ever leaves
// the temp file behind, which is removed.
func (g *GzipCommand) Compress(ctx context.Context, sourcePath string) (string, error) {
	args := []string{"-c"}
	if g.level >= 1 && g.level <= 9 {
		args = append(args, "-"+strconv.Itoa(g.level))
	}

	return replaceCompressed(sourcePath, func(src, dst *os.File) error {
		stderr := &limitedBuffer{limit: stderrLimit}
		cmd := exec.CommandContext(ctx, g.binary, args...)
		cmd.Stdin = src
		cmd.Stdout = dst
		cmd.Stderr = stderr

		if err := cmd.Run(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%s interrupted: %w", g.binary, ctxErr)
			}
			return fmt.Errorf("%s failed: %w: %s", g.binary, err, stderr.String())
		}
		return nil
	})
}

// BuiltinGzip compresses in process
type BuiltinGzip struct {
	level int
}

// NewBuiltinGzip creates an in-process compressor
func NewBuiltinGzip(level int) *BuiltinGzip {
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &BuiltinGzip{level: level}
}

func (g *BuiltinGzip) Binary() string { return "" }

// Compress gzips sourcePath into sourcePath+".gz"
func (g *BuiltinGzip) Compress(ctx context.Context, sourcePath string) (string, error) {
	return replaceCompressed(sourcePath, func(src, dst *os.File) error {
		writer, err := gzip.NewWriterLevel(dst, g.level)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		writer.Name = filepath.Base(sourcePath)

		if _, err := io.Copy(writer, &contextReader{ctx: ctx, r: src}); err != nil {
			writer.Close()
			return fmt.Errorf("failed to compress dump: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip stream: %w", err)
		}
		return nil
	})
}

// replaceCompressed runs compress from sourcePath into a temp file next to it,
// renames the result to sourcePath+".gz" and only then removes the source.
// On any failure the source and any existing .gz are left as they were.
func replaceCompressed(sourcePath string, compress func(src, dst *os.File) error) (string, error) {
	target := sourcePath + gzExt

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to open dump: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(sourcePath), ".compress-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if err := compress(src, tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to chmod artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return "", fmt.Errorf("failed to move artifact into place: %w", err)
	}

	src.Close()
	if err := os.Remove(sourcePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to remove uncompressed dump: %w", err)
	}

	return target, nil
}

// NewCompressor returns the compressor named in settings
func NewCompressor(name string, level int) (Compressor, error) {
	switch name {
	case config.CompressorGzip, "":
		return NewGzipCommand("", level), nil
	case config.CompressorBuiltin:
		return NewBuiltinGzip(level), nil
	default:
		return nil, fmt.Errorf("unknown compressor: %s", name)
	}
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
