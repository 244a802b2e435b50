package log

import (
	"fmt"
	"io"
	"time"
)

// ErrorReporter is the diagnostic sink for background failures. Every error
// goes to the error log; Out, when set, also gets a short notice at most once
// per interval so a terminal user knows to look at the log.
type ErrorReporter struct {
	Scope string
	Out   io.Writer

	every *Every
}

// NewErrorReporter returns a reporter that tags errors with scope.
func NewErrorReporter(scope string, out io.Writer, interval time.Duration) *ErrorReporter {
	return &ErrorReporter{
		Scope: scope,
		Out:   out,
		every: NewEvery(interval),
	}
}

// Report logs err. It never panics and never blocks on anything but the log writer.
func (r *ErrorReporter) Report(err error) {
	if err == nil {
		return
	}

	LogForScope(r.Scope, LevelError, "%v", err)

	if r.Out != nil && r.every != nil && r.every.ShouldLog() {
		fmt.Fprintf(r.Out, "warning: %s: %v (see %s)\n", r.Scope, err, logFileName)
	}
}
