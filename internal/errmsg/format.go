// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Startup
	OpConfigLoad Op = "load configuration"
	OpLogOpen    Op = "open log file"
	OpStoreOpen  Op = "open database"

	// Scan
	OpScan         Op = "scan directory"
	OpScanResolve  Op = "resolve scan root"
	OpMetricsServe Op = "serve metrics"

	// Catalogue
	OpCreateTables Op = "create tables"
	OpPromote      Op = "promote scanned tracks"
	OpEnrich       Op = "enrich catalogue from MusicBrainz"

	// API server
	OpServe Op = "serve catalogue API"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}

// Error wraps err so that its message reads like Format(op, err) while
// staying matchable with errors.Is/As.
func Error(op Op, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

type opError struct {
	op  Op
	err error
}

func (e *opError) Error() string { return Format(e.op, e.err) }

func (e *opError) Unwrap() error { return e.err }
