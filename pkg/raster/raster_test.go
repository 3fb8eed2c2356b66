package raster

import (
	"image"
	"image/color"
	"testing"
)

func TestNewValidatesDimensions(t *testing.T) {
	if _, err := New(0, 10, 255); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := New(10, -1, 255); err == nil {
		t.Error("expected error for negative height")
	}
	buf, err := New(3, 2, 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf.Pix) != 6 {
		t.Fatalf("len(Pix) = %d, want 6", len(buf.Pix))
	}
	for i, v := range buf.Pix {
		if v != 200 {
			t.Fatalf("Pix[%d] = %d, want 200", i, v)
		}
	}
}

func TestAtOutOfBoundsIsWhite(t *testing.T) {
	buf, _ := New(2, 2, 0)
	if got := buf.At(-1, 0); got != 255 {
		t.Errorf("At(-1,0) = %d, want 255", got)
	}
	if got := buf.At(0, 2); got != 255 {
		t.Errorf("At(0,2) = %d, want 255", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	buf, _ := New(2, 2, 128)
	clone := buf.Clone()
	clone.Set(0, 0, 1)
	if buf.At(0, 0) != 128 {
		t.Error("mutating the clone changed the original")
	}
	if !buf.Equal(buf.Clone()) {
		t.Error("fresh clone should equal the original")
	}
}

func TestGrayRoundTrip(t *testing.T) {
	buf, _ := New(3, 2, 0)
	for i := range buf.Pix {
		buf.Pix[i] = uint8(i * 40)
	}
	back := FromImage(buf.ToGray())
	if !buf.Equal(back) {
		t.Error("ToGray/FromImage round trip changed samples")
	}
}

func TestGrayViewSharesPixels(t *testing.T) {
	buf, _ := New(3, 3, 255)
	view := buf.GrayView()
	view.SetGray(1, 1, color.Gray{Y: 7})
	if got := buf.At(1, 1); got != 7 {
		t.Errorf("write through view not visible in buffer: got %d", got)
	}
	buf.Set(2, 0, 9)
	if got := view.GrayAt(2, 0).Y; got != 9 {
		t.Errorf("buffer write not visible through view: got %d", got)
	}
}

func TestFromImageLuma(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	buf := FromImage(img)
	if buf.At(0, 0) != 255 {
		t.Errorf("white pixel converted to %d", buf.At(0, 0))
	}

	img.Set(0, 0, color.RGBA{A: 255})
	if v := FromImage(img).At(0, 0); v != 0 {
		t.Errorf("black pixel converted to %d", v)
	}
}
