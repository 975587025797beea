package ingest

import (
	"errors"
	"io/fs"

	"github.com/bahaipedia/server-scripts/internal/awstats"
	"github.com/bahaipedia/server-scripts/internal/database"
	"github.com/bahaipedia/server-scripts/internal/validpages"
)

// ErrorClass groups file failures by what the operator has to do about them.
type ErrorClass string

const (
	// ClassFormat: the file itself is malformed. Fix or replace it.
	ClassFormat ErrorClass = "format"
	// ClassExternal: the page listing could not be fetched. Retried next run.
	ClassExternal ErrorClass = "external"
	// ClassStore: the database rejected the writes. Everything was rolled back.
	ClassStore ErrorClass = "store"
	// ClassIO: the file could not be read.
	ClassIO ErrorClass = "io"
	ClassOther ErrorClass = "other"
)

// Classify maps a file failure to its class.
func Classify(err error) ErrorClass {
	var (
		formatErr *awstats.FormatError
		fetchErr  *validpages.FetchError
		storeErr  *database.StoreError
		pathErr   *fs.PathError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &formatErr):
		return ClassFormat
	case errors.As(err, &fetchErr):
		return ClassExternal
	case errors.As(err, &storeErr):
		return ClassStore
	case errors.As(err, &pathErr):
		return ClassIO
	default:
		return ClassOther
	}
}

// isFatal reports whether the run cannot continue with the next file.
func isFatal(err error) bool {
	return Classify(err) == ClassStore && database.IsConnectionError(err)
}
