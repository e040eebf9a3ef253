package extract

// reader.go prepares an HTTP body for CSV parsing:
//
//   - Bytes are counted before decoding, so the size limit applies to what
//     was actually downloaded
//   - A UTF-8 BOM (0xEF 0xBB 0xBF) from Windows exports is stripped
//   - Invalid UTF-8 sequences are replaced with U+FFFD so the text loads
//     into PostgreSQL TEXT columns

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
)

// bodyTooLargeError is returned once more than the allowed bytes were read.
type bodyTooLargeError struct {
	limit int64
}

func (e *bodyTooLargeError) Error() string {
	return fmt.Sprintf("response body too large: exceeds %d bytes", e.limit)
}

// countingReader tracks bytes read and fails once limit is exceeded.
// A limit <= 0 disables the check.
type countingReader struct {
	reader    io.Reader
	limit     int64
	bytesRead int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.bytesRead += int64(n)
	if r.limit > 0 && r.bytesRead > r.limit {
		return n, &bodyTooLargeError{limit: r.limit}
	}
	return n, err
}

// wrapBody returns a size-limited, BOM-stripped, UTF-8 sanitized reader.
func wrapBody(body io.Reader, limit int64) io.Reader {
	counter := &countingReader{reader: body, limit: limit}
	return unicode.UTF8BOM.NewDecoder().Reader(counter)
}
