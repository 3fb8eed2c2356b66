// Package render draws sheet templates onto grayscale raster buffers:
// page border, alignment markers, bubble outlines, option letters and the
// header label. Rendering is deterministic: the same template and options
// always produce bit-identical buffers.
package render

import (
	"fmt"

	"markscan/internal/template"
	"markscan/pkg/raster"
)

// Intensities used on rendered sheets.
const (
	inkBlack   = 0
	paperWhite = 255
)

// Options configures sheet rendering.
type Options struct {
	// ShowOptionGuides draws the option letter inside each bubble.
	ShowOptionGuides bool
	// Scale multiplies stroke widths; 1.0 matches the template's native
	// pixel scale.
	Scale float64
}

// DefaultOptions returns the standard rendering options.
func DefaultOptions() Options {
	return Options{ShowOptionGuides: true, Scale: 1.0}
}

// Renderer draws templates with a fixed set of options. Options are bound
// at construction so concurrent renders with different settings never
// interfere.
type Renderer struct {
	opts Options
}

// New creates a Renderer. A non-positive scale falls back to 1.0.
func New(opts Options) *Renderer {
	if opts.Scale <= 0 {
		opts.Scale = 1.0
	}
	return &Renderer{opts: opts}
}

// Render draws the template onto a fresh buffer.
func (r *Renderer) Render(tmpl *template.Template) (*raster.Buffer, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}

	buf, err := raster.New(int(tmpl.PageWidth), int(tmpl.PageHeight), paperWhite)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	r.drawBorder(buf)
	for _, m := range tmpl.Markers {
		DrawMarker(buf, m)
	}
	for _, q := range tmpl.Questions {
		r.drawQuestion(buf, q)
	}
	r.drawHeader(buf, tmpl.Name)
	return buf, nil
}

// stroke converts a nominal width into scaled pixels, never below one.
func (r *Renderer) stroke(nominal float64) int {
	w := int(nominal*r.opts.Scale + 0.5)
	if w < 1 {
		w = 1
	}
	return w
}

func (r *Renderer) drawBorder(buf *raster.Buffer) {
	margin := r.stroke(4)
	StrokeRect(buf, margin, margin, buf.Width-1-margin, buf.Height-1-margin, r.stroke(2), inkBlack)
}

// DrawMarker paints a solid fiducial. Exported because the overlay and
// the synthetic-scan generator re-draw markers as well.
func DrawMarker(buf *raster.Buffer, m template.Marker) {
	half := m.Size / 2
	switch m.Shape {
	case template.MarkerCircle:
		FillCircle(buf, m.Position.X, m.Position.Y, half, inkBlack)
	default: // square
		x0 := int(m.Position.X - half)
		y0 := int(m.Position.Y - half)
		x1 := int(m.Position.X + half)
		y1 := int(m.Position.Y + half)
		FillRect(buf, x0, y0, x1, y1, inkBlack)
	}
}

func (r *Renderer) drawQuestion(buf *raster.Buffer, q template.Question) {
	outline := r.stroke(q.Radius / 8)
	for i, center := range q.Bubbles {
		StrokeCircle(buf, center.X, center.Y, q.Radius, outline, inkBlack)
		if r.opts.ShowOptionGuides {
			DrawStringCentered(buf, optionLetter(i), int(center.X+0.5), int(center.Y+0.5), inkBlack)
		}
	}
	if q.Label != "" {
		// Label sits left of the first bubble.
		first := q.Bubbles[0]
		DrawString(buf, q.Label, int(first.X-q.Radius*4), int(first.Y+4), inkBlack)
	}
}

func (r *Renderer) drawHeader(buf *raster.Buffer, name string) {
	if name == "" {
		return
	}
	margin := r.stroke(4)
	DrawString(buf, name, margin*4, margin*4+12, inkBlack)
}

// optionLetter maps an option index to its guide letter: A, B, ... Z,
// then AA, AB, ... for implausibly wide questions.
func optionLetter(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return string(rune('A'+i/26-1)) + string(rune('A'+i%26))
}
