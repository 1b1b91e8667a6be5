package failure

import (
	"errors"
	"fmt"
)

// Fatal error kinds. Every aborted run ends with an error wrapping exactly one of these.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrDump            = errors.New("dump failure")
	ErrInvalidArtifact = errors.New("invalid artifact")
	ErrUpload          = errors.New("upload failure")
)

// Exit codes returned to the scheduler
const (
	ExitOK              = 0
	ExitUnknown         = 1
	ExitConfiguration   = 2
	ExitDump            = 3
	ExitInvalidArtifact = 4
	ExitUpload          = 5
)

// kindError ties a cause to one of the fatal kinds while keeping both reachable via errors.Is
type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *kindError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// Wrap tags cause with kind. A nil cause produces a plain error of that kind.
func Wrap(kind error, cause error, format string, args ...any) error {
	return &kindError{
		kind:  kind,
		msg:   fmt.Sprintf(format, args...),
		cause: cause,
	}
}

// Configuration builds a ConfigurationError
func Configuration(cause error, format string, args ...any) error {
	return Wrap(ErrConfiguration, cause, format, args...)
}

// Dump builds a DumpFailure
func Dump(cause error, format string, args ...any) error {
	return Wrap(ErrDump, cause, format, args...)
}

// InvalidArtifact builds an InvalidArtifact error
func InvalidArtifact(cause error, format string, args ...any) error {
	return Wrap(ErrInvalidArtifact, cause, format, args...)
}

// Upload builds an UploadFailure
func Upload(cause error, format string, args ...any) error {
	return Wrap(ErrUpload, cause, format, args...)
}

// Kind returns the fatal kind carried by err, or nil if it carries none
func Kind(err error) error {
	for _, kind := range []error{ErrConfiguration, ErrDump, ErrInvalidArtifact, ErrUpload} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// ExitCode maps an error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	switch Kind(err) {
	case ErrConfiguration:
		return ExitConfiguration
	case ErrDump:
		return ExitDump
	case ErrInvalidArtifact:
		return ExitInvalidArtifact
	case ErrUpload:
		return ExitUpload
	default:
		return ExitUnknown
	}
}
