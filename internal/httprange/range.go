package httprange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// UnknownSize marks a Content-Range whose complete length is "*".
const UnknownSize = -1

type ContentRange struct {
	Start, End, Size int64
}

// Get the number of bytes the range covers.
func (cr *ContentRange) Length() int64 { return cr.End - cr.Start + 1 }

// Determine whether the complete length of the representation is known.
func (cr *ContentRange) HasSize() bool { return cr.Size != UnknownSize }

// Determine whether the range ends at the last byte of the representation.
func (cr *ContentRange) IsLastByte() bool {
	return cr.HasSize() && cr.End+1 >= cr.Size
}

// Parse a Content-Range header of the form "bytes start-end/size", where size may be "*".
func ParseContentRange(s string) (*ContentRange, error) {
	const b = "bytes "
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, b) {
		return nil, errors.New("invalid unit of Content-Range header")
	}
	r := strings.Split(s[len(b):], "/")
	if len(r) != 2 {
		return nil, errors.New("invalid size of Content-Range header")
	}
	size := int64(UnknownSize)
	if v := strings.TrimSpace(r[1]); v != "*" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return nil, errors.New("cannot parse size of Content-Range header")
		}
		size = n
	}
	r = strings.Split(r[0], "-")
	if len(r) != 2 {
		return nil, errors.New("cannot parse Content-Range header, expected format \"start-end\"")
	}
	start, err := strconv.ParseInt(strings.TrimSpace(r[0]), 10, 64)
	if err != nil || start < 0 {
		return nil, errors.New("cannot parse start of Content-Range header")
	}
	end, err := strconv.ParseInt(strings.TrimSpace(r[1]), 10, 64)
	if err != nil {
		return nil, errors.New("cannot parse end of Content-Range header")
	}
	if end < start {
		return nil, errors.New("end of Content-Range header precedes its start")
	}
	if size != UnknownSize && end >= size {
		return nil, errors.New("end of Content-Range header exceeds its size")
	}
	return &ContentRange{Start: start, End: end, Size: size}, nil
}

// Format the Range header announcing the first n bytes received by the server,
// empty when nothing was received.
func ReceivedRange(n int64) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("bytes=0-%d", n-1)
}
