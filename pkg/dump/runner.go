package dump

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/williamokano/dbb/pkg/config"
)

// stderrLimit bounds how much dump utility chatter is kept for error messages
const stderrLimit = 4096

// DumpRunner writes an SQL dump of the configured database to outPath
type DumpRunner interface {
	Dump(ctx context.Context, cfg config.RunConfig, outPath string) error
	// Binary is the external program the runner depends on
	Binary() string
}

// MySQLDump runs mysqldump. The password is passed through MYSQL_PWD so it never shows up in ps.
type MySQLDump struct {
	binary    string
	extraArgs []string
}

// NewMySQLDump creates a mysqldump runner
func NewMySQLDump(binary string, extraArgs []string) *MySQLDump {
	if binary == "" {
		binary = "mysqldump"
	}
	return &MySQLDump{binary: binary, extraArgs: extraArgs}
}

func (d *MySQLDump) Binary() string { return d.binary }

// Args builds the mysqldump argument list
func (d *MySQLDump) Args(cfg config.RunConfig) []string {
	args := []string{"-h", cfg.DatabaseHost(), "-u", cfg.DatabaseUser()}
	if cfg.DatabasePort() > 0 {
		args = append(args, "-P", strconv.Itoa(cfg.DatabasePort()))
	}
	args = append(args, d.extraArgs...)
	return append(args, cfg.DatabaseName())
}

// Dump runs mysqldump into outPath
func (d *MySQLDump) Dump(ctx context.Context, cfg config.RunConfig, outPath string) error {
	return runToFile(ctx, d.binary, d.Args(cfg), []string{"MYSQL_PWD=" + cfg.DatabasePassword()}, outPath)
}

// PgDump runs pg_dump in plain SQL format
type PgDump struct {
	binary    string
	extraArgs []string
}

// NewPgDump creates a pg_dump runner
func NewPgDump(binary string, extraArgs []string) *PgDump {
	if binary == "" {
		binary = "pg_dump"
	}
	return &PgDump{binary: binary, extraArgs: extraArgs}
}

func (d *PgDump) Binary() string { return d.binary }

// Args builds the pg_dump argument list
func (d *PgDump) Args(cfg config.RunConfig) []string {
	args := []string{
		"-h", cfg.DatabaseHost(),
		"-U", cfg.DatabaseUser(),
		"-F", "p", // plain SQL, compressed afterwards
		"--no-password",
	}
	if cfg.DatabasePort() > 0 {
		args = append(args, "-p", strconv.Itoa(cfg.DatabasePort()))
	}
	args = append(args, d.extraArgs...)
	return append(args, cfg.DatabaseName())
}

// Dump runs pg_dump into outPath
func (d *PgDump) Dump(ctx context.Context, cfg config.RunConfig, outPath string) error {
	return runToFile(ctx, d.binary, d.Args(cfg), []string{"PGPASSWORD=" + cfg.DatabasePassword()}, outPath)
}

// NewRunner returns the runner for an engine
func NewRunner(engine, binary string, extraArgs []string) (DumpRunner, error) {
	switch engine {
	case config.EngineMySQL, "":
		return NewMySQLDump(binary, extraArgs), nil
	case config.EnginePostgres:
		return NewPgDump(binary, extraArgs), nil
	default:
		return nil, fmt.Errorf("unknown dump engine: %s", engine)
	}
}

// runToFile runs a command with stdout redirected to outPath (truncated first)
func runToFile(ctx context.Context, binary string, args, env []string, outPath string) error {
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}

	stderr := &limitedBuffer{limit: stderrLimit}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = out
	cmd.Stderr = stderr

	runErr := cmd.Run()
	closeErr := out.Close()

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s interrupted: %w", binary, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return fmt.Errorf("%s exited with code %d: %s", binary, exitErr.ExitCode(), stderr.String())
		}
		return fmt.Errorf("failed to run %s: %w", binary, runErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to write dump file: %w", closeErr)
	}

	return nil
}

// limitedBuffer keeps the first limit bytes written to it
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return strings.TrimSpace(b.buf.String())
}
