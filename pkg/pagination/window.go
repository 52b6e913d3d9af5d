package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// FileNameWidth is the number of digits the offset is padded to in batch file
// names. Offsets up to 9,999,999,999 sort lexically in extraction order.
const FileNameWidth = 10

// FilePrefix and FileExt frame every batch file name.
const (
	FilePrefix = "pokedex_"
	FileExt    = ".parquet"
)

var (
	// ErrInvalidLimit is returned for windows with a non-positive limit.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrNegativeOffset is returned for windows starting before zero.
	ErrNegativeOffset = errors.New("offset must not be negative")
)

// Window is one offset/limit page request.
type Window struct {
	Offset int
	Limit  int
}

// Validate checks the window can be sent to the catalog.
func (w Window) Validate() error {
	if w.Limit <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidLimit, w.Limit)
	}
	if w.Offset < 0 {
		return fmt.Errorf("%w (got %d)", ErrNegativeOffset, w.Offset)
	}
	return nil
}

// End returns the offset immediately after the window. It is the next offset
// whether or not the source returned a full page.
func (w Window) End() int {
	return w.Offset + w.Limit
}

// Next returns the window of the same size that starts at End.
func (w Window) Next() Window {
	return Window{Offset: w.End(), Limit: w.Limit}
}

// Query returns the window as catalog query parameters.
func (w Window) Query() url.Values {
	return url.Values{
		"limit":  []string{strconv.Itoa(w.Limit)},
		"offset": []string{strconv.Itoa(w.Offset)},
	}
}

// String implements fmt.Stringer.
func (w Window) String() string {
	return fmt.Sprintf("[%d,%d)", w.Offset, w.End())
}

// BatchFileName returns the file name of the batch fetched at offset.
func BatchFileName(offset int) string {
	return fmt.Sprintf("%s%0*d%s", FilePrefix, FileNameWidth, offset, FileExt)
}
