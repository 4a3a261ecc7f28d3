package decoder

import (
	"errors"
	"fmt"
)

// ParseError reports a structurally invalid record or file. For eager
// decoding it is fatal; for streaming it applies to a single item and the
// stream may continue past it when SkipInvalid is set.
type ParseError struct {
	Platform Platform
	Path     string // empty when decoding from memory
	Line     int    // 1-based line number, 0 when unknown
	Err      error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %v export", e.Platform)
	if e.Path != "" {
		msg += fmt.Sprintf(" (file: %v)", e.Path)
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %v)", e.Line)
	}
	return fmt.Sprintf("%v: %v", msg, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FormatError reports that the file as a whole does not match the
// expected structure for the platform (missing messages array, header
// larger than the pre-scan cap, unrecognizable Discord sub-format).
// Always fatal.
type FormatError struct {
	Platform Platform
	Path     string
	Reason   string
}

func (e *FormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid %v format (file: %v): %v", e.Platform, e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid %v format: %v", e.Platform, e.Reason)
}

// UnrecognizedLocaleError reports that no known WhatsApp timestamp
// grammar matched the sampled lines. Always fatal: without a grammar
// there is no way to tell headers from continuations.
type UnrecognizedLocaleError struct {
	Path    string
	Sampled int
}

func (e *UnrecognizedLocaleError) Error() string {
	msg := fmt.Sprintf("no known timestamp format matched the first %v lines", e.Sampled)
	if e.Path != "" {
		msg = fmt.Sprintf("%v (file: %v)", msg, e.Path)
	}
	return msg
}

// BufferOverflowError reports that a size threshold was exceeded while
// buffering. Always fatal. Max is the configured limit, Actual the size
// observed at the byte that crossed it.
type BufferOverflowError struct {
	Max    int
	Actual int
}

func (e *BufferOverflowError) Error() string {
	return fmt.Sprintf("message too large: %v bytes (maximum: %v bytes)", e.Actual, e.Max)
}

// Fatal reports whether a streaming error must terminate the sequence
// regardless of the SkipInvalid setting. Only per-item parse failures are
// recoverable; I/O, format, locale and overflow errors are not.
func Fatal(err error) bool {
	var parseErr *ParseError
	return !errors.As(err, &parseErr)
}
