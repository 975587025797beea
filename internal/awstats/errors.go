package awstats

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSection is wrapped by FormatError when the index has no entry for a section.
	ErrMissingSection = errors.New("missing required section")
	// ErrFilename is wrapped by FormatError when a report filename breaks the naming convention.
	ErrFilename = errors.New("filename does not match naming convention")
)

// FormatError reports a report file that cannot be decoded. It aborts ingestion of one
// file for one report kind; the file stays unprocessed and is retried on the next run.
type FormatError struct {
	File    string
	Section string
	Line    int
	Reason  string
	Err     error
}

func (e *FormatError) Error() string {
	msg := "awstats: " + e.Reason
	if e.Section != "" {
		msg = fmt.Sprintf("awstats: section %s: %s", e.Section, e.Reason)
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, e.Line)
	}
	if e.File != "" {
		msg = fmt.Sprintf("%s in %s", msg, e.File)
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsFormatError reports whether err is, or wraps, a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
