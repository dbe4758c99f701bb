// Package compress wraps zlib compression with the size cap the object
// store uses to read and write loose objects.
package compress

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"

	"github.com/sourcehut-labs/mgit/internal/errutil"
	"golang.org/x/xerrors"
)

// MaxObjectSize is the hard cap on a decompressed object's size. A
// stream that would expand past this is aborted rather than followed.
const MaxObjectSize = 100 * 1024 * 1024 // 100 MiB

// ErrTooLarge is returned when content exceeds MaxObjectSize.
var ErrTooLarge = errors.New("content too large")

// Deflate compresses data using zlib at the default level, returning an
// owned buffer containing a complete zlib stream (header + deflate +
// adler32).
func Deflate(data []byte) (out []byte, err error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	defer errutil.Close(w, &err)

	if _, err = w.Write(data); err != nil {
		return nil, xerrors.Errorf("could not deflate content: %w", err)
	}
	if err = w.Close(); err != nil {
		return nil, xerrors.Errorf("could not flush deflate stream: %w", err)
	}
	// the deferred Close above is now a harmless no-op; return here so
	// the explicit error is the one surfaced
	return buf.Bytes(), nil
}

// Inflate decompresses the whole zlib stream read from r into memory.
// A stream that expands past MaxObjectSize is aborted with ErrTooLarge.
func Inflate(r io.Reader) (out []byte, err error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, xerrors.Errorf("could not open zlib stream: %w", err)
	}
	defer errutil.Close(zr, &err)

	limited := io.LimitReader(zr, MaxObjectSize+1)
	out, err = io.ReadAll(limited)
	if err != nil {
		return nil, xerrors.Errorf("could not inflate content: %w", err)
	}
	if len(out) > MaxObjectSize {
		return nil, ErrTooLarge
	}
	return out, nil
}

// InflateBytes is a convenience wrapper over Inflate for an in-memory
// compressed buffer.
func InflateBytes(compressed []byte) ([]byte, error) {
	return Inflate(bytes.NewReader(compressed))
}
