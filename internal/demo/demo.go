// Package demo generates a complete set of demonstration artifacts: a
// two-column answer-sheet template, the rendered blank sheet, a synthetic
// randomly-filled response with scanner-like skew, and the graded result
// with its overlay.
package demo

import (
	"fmt"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"markscan/internal/codec"
	"markscan/internal/evaluate"
	"markscan/internal/registration"
	"markscan/internal/render"
	"markscan/internal/template"
	"markscan/pkg/geometry"
	"markscan/pkg/raster"
)

// Layout constants for the demo template, in millimetres on an A4 page,
// rasterized at 300 DPI.
const (
	dpi       = 300
	pxPerMM   = dpi / 25.4
	pageWMM   = 210.0
	pageHMM   = 297.0
	marginMM  = 12.0
	markerMM  = 8.0
	columnWMM = 85.0
	gutterMM  = 10.0
	startYMM  = 60.0
	rowMM     = 11.5
	optionMM  = 12.0
	radiusMM  = 4.5
)

func mm(v float64) float64 { return v * pxPerMM }

// Template builds the demo layout: numQuestions questions split over two
// columns with four options each, and square fiducials in all four page
// corners.
func Template(numQuestions int) *template.Template {
	pageW, pageH := mm(pageWMM), mm(pageHMM)
	inset := mm(marginMM)
	size := mm(markerMM)

	tmpl := &template.Template{
		Name:       "Demo Assessment",
		PageWidth:  pageW,
		PageHeight: pageH,
		Markers: []template.Marker{
			{Position: geometry.Pt(inset, inset), Shape: template.MarkerSquare, Size: size},
			{Position: geometry.Pt(pageW-inset, inset), Shape: template.MarkerSquare, Size: size},
			{Position: geometry.Pt(inset, pageH-inset), Shape: template.MarkerSquare, Size: size},
			{Position: geometry.Pt(pageW-inset, pageH-inset), Shape: template.MarkerSquare, Size: size},
		},
	}

	const columns = 2
	const options = 4
	rowsPerColumn := (numQuestions + columns - 1) / columns

	n := 1
	for col := 0; col < columns && n <= numQuestions; col++ {
		startX := 25.0 + float64(col)*(columnWMM+gutterMM)
		for row := 0; row < rowsPerColumn && n <= numQuestions; row++ {
			centerY := startYMM + float64(row)*rowMM
			q := template.Question{
				ID:     fmt.Sprintf("Q%02d", n),
				Label:  fmt.Sprintf("%d.", n),
				Radius: mm(radiusMM),
			}
			for opt := 0; opt < options; opt++ {
				q.Bubbles = append(q.Bubbles,
					geometry.Pt(mm(startX+float64(opt)*optionMM), mm(centerY)))
			}
			tmpl.Questions = append(tmpl.Questions, q)
			n++
		}
	}
	return tmpl
}

// FillRandom paints a synthetic response onto a rendered sheet. Most
// questions get exactly one filled option; one question is left blank and
// one gets a double mark so the overlay demonstrates the none and
// ambiguous paths. Returns the selected option per question index (-1
// for the blank one, -2 for the double mark).
func FillRandom(sheet *raster.Buffer, tmpl *template.Template, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	selections := make([]int, len(tmpl.Questions))

	blank, double := -1, -1
	if len(tmpl.Questions) >= 3 {
		blank = rng.Intn(len(tmpl.Questions))
		double = rng.Intn(len(tmpl.Questions))
		if double == blank {
			double = (double + 1) % len(tmpl.Questions)
		}
	}

	for i, q := range tmpl.Questions {
		switch i {
		case blank:
			selections[i] = -1
		case double:
			selections[i] = -2
			first := rng.Intn(len(q.Bubbles))
			second := (first + 1 + rng.Intn(len(q.Bubbles)-1)) % len(q.Bubbles)
			fillBubble(sheet, q, first)
			fillBubble(sheet, q, second)
		default:
			pick := rng.Intn(len(q.Bubbles))
			selections[i] = pick
			fillBubble(sheet, q, pick)
		}
	}
	return selections
}

func fillBubble(sheet *raster.Buffer, q template.Question, idx int) {
	c := q.Bubbles[idx]
	render.FillCircle(sheet, c.X, c.Y, q.Radius, 0)
}

// Skew simulates a sloppy scan: rotate by angle degrees around the center
// on a white background, then rescale by factor. The result exercises the
// registration detector the way a real scanner bed would.
func Skew(sheet *raster.Buffer, angleDeg, factor float64) *raster.Buffer {
	img := imaging.Rotate(sheet.ToGray(), angleDeg, color.White)
	if factor > 0 && factor != 1 {
		w := int(float64(img.Bounds().Dx())*factor + 0.5)
		img = imaging.Resize(img, w, 0, imaging.Lanczos)
	}
	return raster.FromImage(img)
}

// Artifacts lists the files a demo run writes.
type Artifacts struct {
	TemplatePath string
	SheetPath    string
	FilledPath   string
	OverlayPath  string
	ResultPath   string
}

// Generate writes the full demo artifact set under dir.
func Generate(dir string, questions int, seed int64, threshold float64) (*Artifacts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	tmpl := Template(questions)
	tmplJSON, err := tmpl.Marshal()
	if err != nil {
		return nil, err
	}

	sheet, err := render.New(render.DefaultOptions()).Render(tmpl)
	if err != nil {
		return nil, err
	}

	filled := sheet.Clone()
	FillRandom(filled, tmpl, seed)
	scan := Skew(filled, 1.5, 0.97)

	overlay, doc, err := evaluate.Grade(scan, tmpl, threshold, registration.DefaultConfig())
	if err != nil {
		return nil, err
	}
	resultJSON, err := doc.Marshal()
	if err != nil {
		return nil, err
	}

	art := &Artifacts{
		TemplatePath: filepath.Join(dir, "template.json"),
		SheetPath:    filepath.Join(dir, "sheet.png"),
		FilledPath:   filepath.Join(dir, "filled_scan.png"),
		OverlayPath:  filepath.Join(dir, "overlay.png"),
		ResultPath:   filepath.Join(dir, "result.json"),
	}

	files := []struct {
		path string
		data func() ([]byte, error)
	}{
		{art.TemplatePath, func() ([]byte, error) { return tmplJSON, nil }},
		{art.SheetPath, func() ([]byte, error) { return codec.Encode(sheet, codec.FormatPNG) }},
		{art.FilledPath, func() ([]byte, error) { return codec.Encode(scan, codec.FormatPNG) }},
		{art.OverlayPath, func() ([]byte, error) { return codec.Encode(overlay, codec.FormatPNG) }},
		{art.ResultPath, func() ([]byte, error) { return resultJSON, nil }},
	}
	for _, f := range files {
		data, err := f.data()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(f.path, data, 0o644); err != nil {
			return nil, err
		}
	}
	return art, nil
}
