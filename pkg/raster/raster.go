// Package raster provides the in-memory grayscale buffer shared by the
// sheet renderer and the mark detection pipeline.
package raster

import (
	"fmt"
	"image"
)

// Buffer is a dense 8-bit grayscale image. Pix holds one intensity sample
// per pixel in row-major order; len(Pix) is always Width*Height.
// 0 is black (ink), 255 is white (paper).
type Buffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// New creates a buffer of the given dimensions filled with the background
// intensity.
func New(width, height int, background uint8) (*Buffer, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("raster: invalid dimensions %dx%d", width, height)
	}
	pix := make([]uint8, width*height)
	if background != 0 {
		for i := range pix {
			pix[i] = background
		}
	}
	return &Buffer{Width: width, Height: height, Pix: pix}, nil
}

// At returns the intensity at (x, y). Out-of-bounds reads return white so
// sampling loops near the page edge stay simple.
func (b *Buffer) At(x, y int) uint8 {
	if x < 0 || x >= b.Width || y < 0 || y >= b.Height {
		return 255
	}
	return b.Pix[y*b.Width+x]
}

// Set writes the intensity at (x, y). Out-of-bounds writes are dropped.
func (b *Buffer) Set(x, y int, v uint8) {
	if x < 0 || x >= b.Width || y < 0 || y >= b.Height {
		return
	}
	b.Pix[y*b.Width+x] = v
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Equal reports whether two buffers have identical dimensions and samples.
func (b *Buffer) Equal(other *Buffer) bool {
	if b.Width != other.Width || b.Height != other.Height {
		return false
	}
	for i := range b.Pix {
		if b.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// ToGray converts the buffer to a stdlib image.Gray sharing no memory.
func (b *Buffer) ToGray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+b.Width], b.Pix[y*b.Width:(y+1)*b.Width])
	}
	return img
}

// GrayView returns an image.Gray sharing the buffer's pixels, so stdlib
// drawing primitives can write into the buffer without copying. Mutating
// the view mutates the buffer.
func (b *Buffer) GrayView() *image.Gray {
	return &image.Gray{Pix: b.Pix, Stride: b.Width, Rect: image.Rect(0, 0, b.Width, b.Height)}
}

// FromImage converts any image.Image into a grayscale buffer using the
// Rec. 601 luma weights.
func FromImage(src image.Image) *Buffer {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	buf := &Buffer{Width: w, Height: h, Pix: make([]uint8, w*h)}

	if gray, ok := src.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			copy(buf.Pix[y*w:(y+1)*w], gray.Pix[y*gray.Stride:y*gray.Stride+w])
		}
		return buf
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			buf.Pix[y*w+x] = uint8((19595*r + 38470*g + 7471*bl + 1<<15) >> 24)
		}
	}
	return buf
}
