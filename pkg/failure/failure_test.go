package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	t.Run("keeps_kind_and_cause", func(t *testing.T) {
		cause := context.DeadlineExceeded
		err := Dump(cause, "mysqldump for %s", "app")

		assert.ErrorIs(t, err, ErrDump)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrUpload)
		assert.Equal(t, "dump failure: mysqldump for app: context deadline exceeded", err.Error())
	})

	t.Run("nil_cause", func(t *testing.T) {
		err := InvalidArtifact(nil, "artifact is %d bytes", 12)

		assert.ErrorIs(t, err, ErrInvalidArtifact)
		assert.Equal(t, "invalid artifact: artifact is 12 bytes", err.Error())
	})

	t.Run("survives_further_wrapping", func(t *testing.T) {
		err := fmt.Errorf("run aborted: %w", Configuration(nil, "DB_HOST is not set"))

		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Equal(t, ErrConfiguration, Kind(err))
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: ExitOK},
		{name: "configuration", err: Configuration(nil, "x"), want: ExitConfiguration},
		{name: "dump", err: Dump(errors.New("exit status 2"), "x"), want: ExitDump},
		{name: "invalid artifact", err: InvalidArtifact(nil, "x"), want: ExitInvalidArtifact},
		{name: "upload", err: Upload(errors.New("timeout"), "x"), want: ExitUpload},
		{name: "untagged", err: errors.New("boom"), want: ExitUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
