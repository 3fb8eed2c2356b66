package render

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"markscan/pkg/raster"
)

// Drawing primitives over the shared grayscale buffer. These are used by
// the sheet renderer, the evaluation overlay and the demo fill generator,
// so they live here rather than in any one pipeline stage.

// FillCircle paints a solid disk.
func FillCircle(buf *raster.Buffer, cx, cy, r float64, v uint8) {
	if r < 0.5 {
		buf.Set(int(cx+0.5), int(cy+0.5), v)
		return
	}
	r2 := r * r
	for y := int(cy - r); y <= int(cy+r+1); y++ {
		dy := float64(y) - cy
		for x := int(cx - r); x <= int(cx+r+1); x++ {
			dx := float64(x) - cx
			if dx*dx+dy*dy <= r2 {
				buf.Set(x, y, v)
			}
		}
	}
}

// StrokeCircle paints a circle outline of the given stroke width. The
// stroke grows inward from the nominal radius.
func StrokeCircle(buf *raster.Buffer, cx, cy, r float64, width int, v uint8) {
	if width < 1 {
		width = 1
	}
	inner := r - float64(width)
	if inner < 0 {
		inner = 0
	}
	outer2 := r * r
	inner2 := inner * inner
	for y := int(cy - r); y <= int(cy+r+1); y++ {
		dy := float64(y) - cy
		for x := int(cx - r); x <= int(cx+r+1); x++ {
			dx := float64(x) - cx
			d2 := dx*dx + dy*dy
			if d2 <= outer2 && d2 >= inner2 {
				buf.Set(x, y, v)
			}
		}
	}
}

// FillRect paints a solid axis-aligned rectangle.
func FillRect(buf *raster.Buffer, x0, y0, x1, y1 int, v uint8) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			buf.Set(x, y, v)
		}
	}
}

// StrokeRect paints a rectangle outline of the given stroke width, growing
// inward.
func StrokeRect(buf *raster.Buffer, x0, y0, x1, y1, width int, v uint8) {
	if width < 1 {
		width = 1
	}
	for w := 0; w < width; w++ {
		xi0, yi0 := x0+w, y0+w
		xi1, yi1 := x1-w, y1-w
		if xi0 > xi1 || yi0 > yi1 {
			return
		}
		for x := xi0; x <= xi1; x++ {
			buf.Set(x, yi0, v)
			buf.Set(x, yi1, v)
		}
		for y := yi0; y <= yi1; y++ {
			buf.Set(xi0, y, v)
			buf.Set(xi1, y, v)
		}
	}
}

// DrawLine paints a straight line of the given thickness using Bresenham
// stepping with a square brush.
func DrawLine(buf *raster.Buffer, x0, y0, x1, y1, width int, v uint8) {
	if width < 1 {
		width = 1
	}
	dx := iabs(x1 - x0)
	dy := -iabs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	x, y := x0, y0
	half := width / 2
	for {
		for by := y - half; by <= y+half; by++ {
			for bx := x - half; bx <= x+half; bx++ {
				buf.Set(bx, by, v)
			}
		}
		if x == x1 && y == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// glyphFace is the fixed bitmap face used for option letters and header
// text. A bitmap face keeps rendering deterministic across platforms.
var glyphFace = basicfont.Face7x13

// DrawString rasterizes s with its baseline-left corner at (x, y). The
// drawer writes through a shared-pixel view, so no per-call copies.
func DrawString(buf *raster.Buffer, s string, x, y int, v uint8) {
	d := font.Drawer{
		Dst:  buf.GrayView(),
		Src:  image.NewUniform(grayColor(v)),
		Face: glyphFace,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// DrawStringCentered rasterizes s horizontally centered on cx with the
// glyph block vertically centered on cy.
func DrawStringCentered(buf *raster.Buffer, s string, cx, cy int, v uint8) {
	w := font.MeasureString(glyphFace, s).Round()
	m := glyphFace.Metrics()
	ascent := m.Ascent.Round()
	height := m.Height.Round()
	DrawString(buf, s, cx-w/2, cy-height/2+ascent, v)
}

func grayColor(v uint8) color.Gray { return color.Gray{Y: v} }

func iabs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
