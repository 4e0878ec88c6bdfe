// Package reveal locates the caller chosen disclosure window inside the hash remainder.
package reveal

import (
	"bytes"
	"errors"
	"fmt"
)

// MaxRevealLength is the largest window packed into one BN254 field element
const MaxRevealLength = 31

var (
	// ErrDelimiterNotFound is returned when a reveal delimiter does not occur after the boundary
	ErrDelimiterNotFound = errors.New("reveal: delimiter not found")

	// ErrRevealTooLarge is returned when the window is longer than MaxRevealLength
	ErrRevealTooLarge = errors.New("reveal: window too large")

	// ErrDocumentTypeNotFound is returned when no tag name follows the selector
	ErrDocumentTypeNotFound = errors.New("reveal: document type not found")
)

// Window offsets are relative to the selector boundary; End is inclusive
type Window struct {
	Enabled bool
	Start   int
	End     int
}

// Length of the revealed bytes, zero when disabled
func (w Window) Length() int {
	if !w.Enabled {
		return 0
	}
	return w.End - w.Start + 1
}

// Locate finds start at or after boundary and end after that start occurrence. The
// remainder must already be trimmed to its padded message length.
func Locate(remainder []byte, boundary int, start, end string) (Window, error) {
	if start == "" || end == "" {
		return Window{}, nil
	}
	if boundary < 0 || boundary > len(remainder) {
		return Window{}, fmt.Errorf("reveal: boundary %d outside remainder of %d bytes", boundary, len(remainder))
	}

	s := bytes.Index(remainder[boundary:], []byte(start))
	if s < 0 {
		return Window{}, fmt.Errorf("%w: start %q", ErrDelimiterNotFound, start)
	}

	// the end delimiter is searched after the whole start delimiter, never inside it
	from := boundary + s + len(start)
	e := bytes.Index(remainder[from:], []byte(end))
	if e < 0 {
		return Window{}, fmt.Errorf("%w: end %q", ErrDelimiterNotFound, end)
	}

	w := Window{
		Enabled: true,
		Start:   s,
		End:     from + e - boundary,
	}
	if w.Length() > MaxRevealLength {
		return Window{}, fmt.Errorf("%w: %d bytes, at most %d", ErrRevealTooLarge, w.Length(), MaxRevealLength)
	}
	return w, nil
}

// Bytes returns the revealed slice of remainder, nil when disabled
func (w Window) Bytes(remainder []byte, boundary int) []byte {
	if !w.Enabled {
		return nil
	}
	return remainder[boundary+w.Start : boundary+w.End+1]
}

// DocumentType returns the name of the first tag inside the disclosure subtree: the bytes
// after selector and '<' up to the first space or '>'.
func DocumentType(remainder []byte, boundary int, selector []byte) ([]byte, error) {
	from := boundary + len(selector) + 1
	if boundary < 0 || from > len(remainder) || !bytes.HasPrefix(remainder[boundary:], selector) {
		return nil, fmt.Errorf("%w: selector not at %d", ErrDocumentTypeNotFound, boundary)
	}

	n := bytes.IndexAny(remainder[from:], " >")
	if n < 0 {
		return nil, ErrDocumentTypeNotFound
	}
	return remainder[from : from+n], nil
}
