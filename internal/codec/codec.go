// Package codec encodes and decodes grayscale raster buffers.
//
// Two formats are supported: 8-bit grayscale PNG as the compressed binary
// format and plain-text PGM ("P2") as the uncompressed fallback. Both
// round-trip exactly. The codec is purely functional: it never touches the
// filesystem and callers choose the format explicitly.
package codec

import (
	"fmt"

	"markscan/pkg/raster"
)

// Format identifies a raster encoding.
type Format int

const (
	// FormatPNG is the compressed binary format (8-bit grayscale PNG).
	FormatPNG Format = iota
	// FormatPGM is the plain-text fallback format (PGM "P2").
	FormatPGM
)

// String returns the canonical lowercase name of the format.
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatPGM:
		return "pgm"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// FormatError reports a malformed, truncated or unsupported raster stream.
// Offset is the byte position at which decoding failed, when known.
type FormatError struct {
	Format Format
	Offset int64
	Reason string
}

func (e *FormatError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("%s: %s at byte %d", e.Format, e.Reason, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Format, e.Reason)
}

func formatErrf(f Format, offset int64, format string, args ...any) *FormatError {
	return &FormatError{Format: f, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// Encode serializes the buffer in the requested format.
func Encode(buf *raster.Buffer, format Format) ([]byte, error) {
	if buf == nil || buf.Width < 1 || buf.Height < 1 || len(buf.Pix) != buf.Width*buf.Height {
		return nil, fmt.Errorf("codec: invalid buffer")
	}
	switch format {
	case FormatPNG:
		return encodePNG(buf)
	case FormatPGM:
		return encodePGM(buf), nil
	default:
		return nil, fmt.Errorf("codec: unknown format %d", int(format))
	}
}

// Decode parses a raster stream in either supported format, sniffing the
// leading signature bytes.
func Decode(data []byte) (*raster.Buffer, error) {
	if len(data) >= len(pngSignature) && string(data[:len(pngSignature)]) == pngSignature {
		return decodePNG(data)
	}
	if len(data) >= 2 && data[0] == 'P' && data[1] == '2' {
		return decodePGM(data)
	}
	return nil, formatErrf(FormatPNG, 0, "unrecognized signature")
}
