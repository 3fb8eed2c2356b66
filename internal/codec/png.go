package codec

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"markscan/pkg/raster"
)

// pngSignature is the fixed 8-byte PNG file header.
const pngSignature = "\x89PNG\r\n\x1a\n"

// PNG scanline filter types. The encoder emits None and Up; the decoder
// reverses all five.
const (
	filterNone    = 0
	filterSub     = 1
	filterUp      = 2
	filterAverage = 3
	filterPaeth   = 4
)

// encodePNG serializes the buffer as an 8-bit grayscale PNG: signature,
// IHDR, one IDAT holding the zlib-compressed filtered scanlines, IEND.
// Each chunk carries its own CRC-32; the zlib stream carries an Adler-32
// over the filtered pixel data.
func encodePNG(buf *raster.Buffer) ([]byte, error) {
	var out bytes.Buffer
	out.WriteString(pngSignature)

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(buf.Width))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(buf.Height))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 0 // color type: grayscale
	// bytes 10-12: compression, filter and interlace methods, all zero
	writeChunk(&out, "IHDR", ihdr)

	filtered := filterScanlines(buf)
	var idat bytes.Buffer
	zw := zlib.NewWriter(&idat)
	if _, err := zw.Write(filtered); err != nil {
		return nil, fmt.Errorf("png: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("png: compress: %w", err)
	}
	writeChunk(&out, "IDAT", idat.Bytes())

	writeChunk(&out, "IEND", nil)
	return out.Bytes(), nil
}

// filterScanlines prefixes every row with a filter-type byte. Rows where
// the Up filter produces smaller residuals (by absolute sum) use it;
// otherwise the row is stored unfiltered.
func filterScanlines(buf *raster.Buffer) []byte {
	w, h := buf.Width, buf.Height
	out := make([]byte, 0, (w+1)*h)
	up := make([]byte, w)

	for y := 0; y < h; y++ {
		row := buf.Pix[y*w : (y+1)*w]

		var sumNone, sumUp int
		prior := up
		if y == 0 {
			prior = make([]byte, w)
		}
		for x := 0; x < w; x++ {
			sumNone += absDelta(row[x])
			sumUp += absDelta(row[x] - prior[x])
		}

		if sumUp < sumNone {
			out = append(out, filterUp)
			for x := 0; x < w; x++ {
				out = append(out, row[x]-prior[x])
			}
		} else {
			out = append(out, filterNone)
			out = append(out, row...)
		}
		copy(up, row)
	}
	return out
}

// absDelta treats a residual byte as a signed difference and returns its
// magnitude, the standard heuristic for picking a PNG row filter.
func absDelta(b byte) int {
	v := int(int8(b))
	if v < 0 {
		return -v
	}
	return v
}

// writeChunk emits length, type, data and the CRC-32 over type+data.
func writeChunk(out *bytes.Buffer, typ string, data []byte) {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(data)))
	copy(hdr[4:8], typ)
	out.Write(hdr[:])
	out.Write(data)

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	out.Write(sum[:])
}

// decodePNG parses an 8-bit grayscale PNG back into a raster buffer. It
// rejects bad chunk CRCs, truncated streams, unsupported image types and
// any mismatch between declared dimensions and the decompressed pixel data.
func decodePNG(data []byte) (*raster.Buffer, error) {
	if len(data) < len(pngSignature) || string(data[:len(pngSignature)]) != pngSignature {
		return nil, formatErrf(FormatPNG, 0, "bad signature")
	}

	var (
		width, height int
		seenIHDR      bool
		seenIEND      bool
		idat          bytes.Buffer
	)

	pos := int64(len(pngSignature))
	rest := data[len(pngSignature):]
	for !seenIEND {
		if len(rest) < 8 {
			return nil, formatErrf(FormatPNG, pos, "truncated chunk header")
		}
		length := binary.BigEndian.Uint32(rest[0:4])
		typ := string(rest[4:8])
		if int(length) < 0 || len(rest) < 8+int(length)+4 {
			return nil, formatErrf(FormatPNG, pos, "truncated %s chunk", typ)
		}
		chunkData := rest[8 : 8+length]

		crc := crc32.NewIEEE()
		crc.Write(rest[4 : 8+length])
		want := binary.BigEndian.Uint32(rest[8+length : 12+length])
		if crc.Sum32() != want {
			return nil, formatErrf(FormatPNG, pos, "%s chunk CRC mismatch", typ)
		}

		switch typ {
		case "IHDR":
			if seenIHDR {
				return nil, formatErrf(FormatPNG, pos, "duplicate IHDR")
			}
			if length != 13 {
				return nil, formatErrf(FormatPNG, pos, "IHDR length %d", length)
			}
			width = int(binary.BigEndian.Uint32(chunkData[0:4]))
			height = int(binary.BigEndian.Uint32(chunkData[4:8]))
			if width < 1 || height < 1 {
				return nil, formatErrf(FormatPNG, pos, "invalid dimensions %dx%d", width, height)
			}
			if chunkData[8] != 8 || chunkData[9] != 0 {
				return nil, formatErrf(FormatPNG, pos,
					"unsupported image type (bit depth %d, color type %d)", chunkData[8], chunkData[9])
			}
			if chunkData[10] != 0 || chunkData[11] != 0 || chunkData[12] != 0 {
				return nil, formatErrf(FormatPNG, pos, "unsupported compression/filter/interlace method")
			}
			seenIHDR = true
		case "IDAT":
			if !seenIHDR {
				return nil, formatErrf(FormatPNG, pos, "IDAT before IHDR")
			}
			idat.Write(chunkData)
		case "IEND":
			if length != 0 {
				return nil, formatErrf(FormatPNG, pos, "IEND with data")
			}
			seenIEND = true
		default:
			// Ancillary chunks (tEXt, pHYs, ...) are CRC-checked and skipped.
		}

		advance := 8 + int(length) + 4
		rest = rest[advance:]
		pos += int64(advance)
	}
	if !seenIHDR {
		return nil, formatErrf(FormatPNG, pos, "missing IHDR")
	}

	zr, err := zlib.NewReader(bytes.NewReader(idat.Bytes()))
	if err != nil {
		return nil, formatErrf(FormatPNG, pos, "bad zlib stream: %v", err)
	}
	defer zr.Close()
	// ReadAll drains to EOF, which makes the zlib reader verify the
	// trailing Adler-32 checksum.
	filtered, err := io.ReadAll(zr)
	if err != nil {
		return nil, formatErrf(FormatPNG, pos, "decompress: %v", err)
	}

	rowSize := width + 1
	if len(filtered) != rowSize*height {
		return nil, formatErrf(FormatPNG, pos,
			"pixel data length %d does not match %dx%d", len(filtered), width, height)
	}

	buf := &raster.Buffer{Width: width, Height: height, Pix: make([]uint8, width*height)}
	for y := 0; y < height; y++ {
		ft := filtered[y*rowSize]
		row := filtered[y*rowSize+1 : (y+1)*rowSize]
		out := buf.Pix[y*width : (y+1)*width]
		var prior []uint8
		if y > 0 {
			prior = buf.Pix[(y-1)*width : y*width]
		}
		if err := unfilterRow(ft, row, out, prior); err != nil {
			return nil, formatErrf(FormatPNG, pos, "row %d: %v", y, err)
		}
	}
	return buf, nil
}

// unfilterRow reverses one PNG scanline filter. For 8-bit grayscale the
// pixel stride is one byte, so "left" is simply the previous output byte.
func unfilterRow(ft byte, row []byte, out, prior []uint8) error {
	switch ft {
	case filterNone:
		copy(out, row)
	case filterSub:
		var left uint8
		for x := range row {
			left = row[x] + left
			out[x] = left
		}
	case filterUp:
		for x := range row {
			out[x] = row[x] + priorAt(prior, x)
		}
	case filterAverage:
		for x := range row {
			var left uint8
			if x > 0 {
				left = out[x-1]
			}
			out[x] = row[x] + uint8((int(left)+int(priorAt(prior, x)))/2)
		}
	case filterPaeth:
		for x := range row {
			var left, upLeft uint8
			if x > 0 {
				left = out[x-1]
				upLeft = priorAt(prior, x-1)
			}
			out[x] = row[x] + paeth(left, priorAt(prior, x), upLeft)
		}
	default:
		return fmt.Errorf("unknown filter type %d", ft)
	}
	return nil
}

func priorAt(prior []uint8, x int) uint8 {
	if prior == nil {
		return 0
	}
	return prior[x]
}

// paeth implements the Paeth predictor from the PNG specification: pick
// the neighbor (left, above, upper-left) closest to left+above-upperleft.
func paeth(a, b, c uint8) uint8 {
	p := int(a) + int(b) - int(c)
	pa := iabs(p - int(a))
	pb := iabs(p - int(b))
	pc := iabs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func iabs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
