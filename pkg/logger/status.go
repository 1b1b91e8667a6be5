package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Status prints short colored progress lines for operators watching a run by hand.
// Cron output usually lands in a mail or a file, so colors are dropped when the
// destination is not a terminal.
type Status struct {
	out     io.Writer
	info    *color.Color
	success *color.Color
	failure *color.Color
}

// NewStatus creates a status printer writing to out
func NewStatus(out io.Writer, noColor bool) *Status {
	s := &Status{
		out:     out,
		info:    color.New(color.FgHiCyan),
		success: color.New(color.FgHiGreen),
		failure: color.New(color.FgHiRed),
	}

	if noColor || !isTerminal(out) {
		s.info.DisableColor()
		s.success.DisableColor()
		s.failure.DisableColor()
	} else {
		s.info.EnableColor()
		s.success.EnableColor()
		s.failure.EnableColor()
	}

	return s
}

// Discard returns a printer that writes nothing
func Discard() *Status {
	return NewStatus(io.Discard, true)
}

// Info prints an in-progress step
func (s *Status) Info(format string, args ...interface{}) {
	s.print(s.info, format, args...)
}

// Success prints the final line of a completed run
func (s *Status) Success(format string, args ...interface{}) {
	s.print(s.success, format, args...)
}

// Failure prints the line explaining why a run aborted
func (s *Status) Failure(format string, args ...interface{}) {
	s.print(s.failure, format, args...)
}

func (s *Status) print(c *color.Color, format string, args ...interface{}) {
	c.Fprintln(s.out, fmt.Sprintf(format, args...))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
