package codec

import (
	"bytes"
	"strconv"

	"markscan/pkg/raster"
)

// pgmMaxVal is the only sample depth the codec supports.
const pgmMaxVal = 255

// encodePGM serializes the buffer as plain-text PGM: the "P2" magic, a
// line with width, height and the maximum sample value, then one line of
// decimal samples per scanline.
func encodePGM(buf *raster.Buffer) []byte {
	var out bytes.Buffer
	out.Grow(buf.Width*buf.Height*4 + 32)
	out.WriteString("P2\n")
	out.WriteString(strconv.Itoa(buf.Width))
	out.WriteByte(' ')
	out.WriteString(strconv.Itoa(buf.Height))
	out.WriteByte(' ')
	out.WriteString(strconv.Itoa(pgmMaxVal))
	out.WriteByte('\n')
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			if x > 0 {
				out.WriteByte(' ')
			}
			out.WriteString(strconv.Itoa(int(buf.Pix[y*buf.Width+x])))
		}
		out.WriteByte('\n')
	}
	return out.Bytes()
}

// decodePGM parses plain-text PGM. Parsing is token-based, so any
// whitespace layout after the magic is accepted. Comment lines starting
// with '#' are skipped.
func decodePGM(data []byte) (*raster.Buffer, error) {
	tok := &pgmTokenizer{data: data}

	magic, err := tok.next()
	if err != nil || magic != "P2" {
		return nil, formatErrf(FormatPGM, tok.pos, "missing P2 magic")
	}

	width, err := tok.nextInt()
	if err != nil {
		return nil, formatErrf(FormatPGM, tok.pos, "bad width: %v", err)
	}
	height, err := tok.nextInt()
	if err != nil {
		return nil, formatErrf(FormatPGM, tok.pos, "bad height: %v", err)
	}
	if width < 1 || height < 1 {
		return nil, formatErrf(FormatPGM, tok.pos, "invalid dimensions %dx%d", width, height)
	}
	maxVal, err := tok.nextInt()
	if err != nil {
		return nil, formatErrf(FormatPGM, tok.pos, "bad max value: %v", err)
	}
	if maxVal != pgmMaxVal {
		return nil, formatErrf(FormatPGM, tok.pos, "unsupported max value %d", maxVal)
	}

	buf := &raster.Buffer{Width: width, Height: height, Pix: make([]uint8, width*height)}
	for i := range buf.Pix {
		v, err := tok.nextInt()
		if err != nil {
			return nil, formatErrf(FormatPGM, tok.pos,
				"truncated pixel data: have %d of %d samples", i, width*height)
		}
		if v < 0 || v > pgmMaxVal {
			return nil, formatErrf(FormatPGM, tok.pos, "sample %d out of range", v)
		}
		buf.Pix[i] = uint8(v)
	}
	if _, err := tok.next(); err == nil {
		return nil, formatErrf(FormatPGM, tok.pos, "trailing data after %d samples", width*height)
	}
	return buf, nil
}

// pgmTokenizer yields whitespace-separated tokens, skipping '#' comments.
type pgmTokenizer struct {
	data []byte
	pos  int64
}

func (t *pgmTokenizer) next() (string, error) {
	data := t.data
	i := int(t.pos)
	for i < len(data) {
		c := data[i]
		if c == '#' {
			for i < len(data) && data[i] != '\n' {
				i++
			}
			continue
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}
		break
	}
	if i >= len(data) {
		t.pos = int64(i)
		return "", errEOF
	}
	start := i
	for i < len(data) {
		c := data[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '#' {
			break
		}
		i++
	}
	t.pos = int64(i)
	return string(data[start:i]), nil
}

func (t *pgmTokenizer) nextInt() (int, error) {
	s, err := t.next()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

var errEOF = &FormatError{Format: FormatPGM, Reason: "unexpected end of data"}
