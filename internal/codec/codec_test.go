package codec

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"math/rand"
	"testing"

	"markscan/pkg/raster"
)

func randomBuffer(t *testing.T, w, h int, seed int64) *raster.Buffer {
	t.Helper()
	buf, err := raster.New(w, h, 255)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range buf.Pix {
		buf.Pix[i] = uint8(rng.Intn(256))
	}
	return buf
}

// gradientBuffer produces data the Up filter compresses well, exercising
// the encoder's filtered path.
func gradientBuffer(t *testing.T, w, h int) *raster.Buffer {
	t.Helper()
	buf, err := raster.New(w, h, 0)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf.Pix[y*w+x] = uint8((x + y*3) % 256)
		}
	}
	return buf
}

func TestRoundTrip(t *testing.T) {
	dims := []struct{ w, h int }{
		{1, 1}, {1, 7}, {7, 1}, {16, 16}, {33, 9}, {200, 120},
	}
	for _, format := range []Format{FormatPNG, FormatPGM} {
		for _, d := range dims {
			for _, buf := range []*raster.Buffer{
				randomBuffer(t, d.w, d.h, int64(d.w*100+d.h)),
				gradientBuffer(t, d.w, d.h),
			} {
				data, err := Encode(buf, format)
				if err != nil {
					t.Fatalf("%v %dx%d: encode: %v", format, d.w, d.h, err)
				}
				got, err := Decode(data)
				if err != nil {
					t.Fatalf("%v %dx%d: decode: %v", format, d.w, d.h, err)
				}
				if !got.Equal(buf) {
					t.Errorf("%v %dx%d: round trip mismatch", format, d.w, d.h)
				}
			}
		}
	}
}

// TestPNGReadableByStdlib checks interoperability: streams produced by
// the codec must decode with the standard library.
func TestPNGReadableByStdlib(t *testing.T) {
	buf := gradientBuffer(t, 40, 25)
	data, err := Encode(buf, FormatPNG)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("stdlib png.Decode rejected our stream: %v", err)
	}
	got := raster.FromImage(img)
	if !got.Equal(buf) {
		t.Error("stdlib decode produced different samples")
	}
}

// TestPNGDecodeStdlibStream checks the reverse direction, which also
// exercises the sub/average/paeth filters the stdlib encoder emits.
func TestPNGDecodeStdlibStream(t *testing.T) {
	buf := randomBuffer(t, 64, 48, 7)
	gray := buf.ToGray()

	var out bytes.Buffer
	if err := png.Encode(&out, gray); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(out.Bytes())
	if err != nil {
		t.Fatalf("decoding stdlib PNG: %v", err)
	}
	if !got.Equal(buf) {
		t.Error("decoded stdlib PNG differs from source")
	}
}

func TestPNGDecodeRejectsCorruption(t *testing.T) {
	buf := gradientBuffer(t, 20, 20)
	data, err := Encode(buf, FormatPNG)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"bad signature", func(d []byte) []byte { d[0] ^= 0xFF; return d }},
		{"flipped IDAT byte", func(d []byte) []byte { d[len(d)-20] ^= 0xFF; return d }},
		{"truncated", func(d []byte) []byte { return d[:len(d)/2] }},
		{"dimension mismatch", func(d []byte) []byte {
			// Shrink declared height in IHDR and fix its CRC by leaving
			// it stale: either way decode must fail.
			d[8+8+7] = 1
			return d
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrupt := tt.mutate(append([]byte(nil), data...))
			if _, err := Decode(corrupt); err == nil {
				t.Fatal("decode accepted corrupt stream")
			} else {
				var fe *FormatError
				if !errors.As(err, &fe) {
					t.Errorf("error %v is not a FormatError", err)
				}
			}
		})
	}
}

func TestPNGDecodeRejectsColorPNG(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var out bytes.Buffer
	if err := png.Encode(&out, rgba); err != nil {
		t.Fatal(err)
	}
	var fe *FormatError
	if _, err := Decode(out.Bytes()); !errors.As(err, &fe) {
		t.Errorf("expected FormatError for RGBA PNG, got %v", err)
	}
}

func TestPGMTokenParsing(t *testing.T) {
	// Comments and arbitrary whitespace between tokens must parse.
	src := "P2\n# a comment\n 2\t2\n255\n0 64\n128 255\n"
	buf, err := Decode([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{0, 64, 128, 255}
	for i, v := range want {
		if buf.Pix[i] != v {
			t.Errorf("Pix[%d] = %d, want %d", i, buf.Pix[i], v)
		}
	}
}

func TestPGMDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad magic", "P5\n2 2 255\n0 0 0 0"},
		{"missing samples", "P2\n2 2 255\n0 0 0"},
		{"trailing data", "P2\n2 2 255\n0 0 0 0 0"},
		{"sample out of range", "P2\n2 2 255\n0 0 0 999"},
		{"wrong maxval", "P2\n2 2 128\n0 0 0 0"},
		{"zero dimensions", "P2\n0 2 255\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fe *FormatError
			if _, err := Decode([]byte(tt.src)); !errors.As(err, &fe) {
				t.Errorf("expected FormatError, got %v", err)
			}
		})
	}
}

func TestEncodeRejectsInvalidBuffer(t *testing.T) {
	bad := &raster.Buffer{Width: 3, Height: 3, Pix: make([]uint8, 4)}
	if _, err := Encode(bad, FormatPNG); err == nil {
		t.Error("encode accepted buffer with mismatched pixel count")
	}
}
