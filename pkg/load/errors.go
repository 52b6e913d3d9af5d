package load

import (
	"errors"
	"fmt"
)

// MalformedRecordError reports a record whose resource URL carries no
// numeric identifier. A load that returns it has committed no rows.
type MalformedRecordError struct {
	// Path is the batch file being loaded
	Path string

	// Row is the zero-based position of the record in the file
	Row int

	// URL is the offending resource locator
	URL string
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %d in %s: url %q does not match %s",
		e.Row, e.Path, e.URL, idPattern.String())
}

// IsMalformedRecord reports whether err is or wraps a MalformedRecordError.
func IsMalformedRecord(err error) bool {
	var me *MalformedRecordError
	return errors.As(err, &me)
}
