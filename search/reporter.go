package search

import (
	"fmt"
	"io"
)

// Reporter receives the throughput lines of a running search.
type Reporter interface {
	Printf(format string, args ...interface{})
}

// SilentReporter drops every line.
type SilentReporter struct{}

func (r *SilentReporter) Printf(format string, args ...interface{}) {}

// ColorReporter writes report lines to Writer, typically stderr. The lines
// arrive already coloured by FormatReport; gookit/color strips the escape
// codes itself when the terminal does not support them.
type ColorReporter struct {
	Writer io.Writer
}

func (r *ColorReporter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(r.Writer, format, args...)
}
