// Package gondalog provides the explicit, threaded logger pair every
// component takes instead of reaching for a package-level global.
// Out/Err are always non-nil so callers never need a nil check.
package gondalog

import (
	"io"
	"log"
)

// Loggers holds the standard-out and standard-error loggers passed
// through a call chain, plus a verbosity flag callers can check before
// doing expensive formatting.
type Loggers struct {
	Out, Err *log.Logger
	Verbose  bool
}

// New builds a Loggers writing to out/errW with no special log flags
// (matching conda CLI output conventions: no timestamps, no file/line).
func New(out, errW io.Writer, verbose bool) Loggers {
	return Loggers{
		Out:     log.New(out, "", 0),
		Err:     log.New(errW, "", 0),
		Verbose: verbose,
	}
}

// Discard is a Loggers that writes nowhere, useful as a default in tests.
func Discard() Loggers {
	return New(io.Discard, io.Discard, false)
}
