// Package evaluate turns a classification result into the external
// grading artifacts: a machine-readable result document and an annotated
// overlay raster a reviewer can audit visually.
package evaluate

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"markscan/internal/classify"
	"markscan/internal/render"
	"markscan/internal/template"
	"markscan/pkg/raster"
)

// Overlay mark intensities. Marks are mid-gray so they remain
// distinguishable from both printed ink (0) and paper (255).
const (
	selectedShade  = 96
	ambiguousShade = 32
	noneShade      = 160
)

// Document is the serialized grading record. Field names are stable and
// questions keep template order, so downstream scorers can join against
// an answer key by index.
type Document struct {
	RunID        string                    `json:"run_id"`
	Template     string                    `json:"template"`
	GradedAt     time.Time                 `json:"graded_at"`
	Threshold    float64                   `json:"threshold"`
	Registration float64                   `json:"registration_confidence"`
	Questions    []classify.QuestionResult `json:"questions"`
}

// Marshal serializes the document as indented JSON.
func (d *Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Report builds the result document and the annotated overlay for a
// grading run. The overlay re-renders the blank template and paints a
// solid disk over every selected bubble, a cross over every bubble of an
// ambiguous question, and a double ring around the bubbles of questions
// with no detected answer.
func Report(res *classify.Result, tmpl *template.Template) (*raster.Buffer, *Document, error) {
	overlay, err := render.New(render.DefaultOptions()).Render(tmpl)
	if err != nil {
		return nil, nil, err
	}

	for qi, q := range tmpl.Questions {
		qr := res.Questions[qi]
		switch qr.Status {
		case classify.StatusSelected:
			c := q.Bubbles[qr.Selected]
			render.FillCircle(overlay, c.X, c.Y, q.Radius*0.7, selectedShade)
		case classify.StatusAmbiguous:
			for _, idx := range qr.Filled {
				c := q.Bubbles[idx]
				drawCross(overlay, c.X, c.Y, q.Radius)
			}
		case classify.StatusNone:
			for _, c := range q.Bubbles {
				render.StrokeCircle(overlay, c.X, c.Y, q.Radius*1.3, 1, noneShade)
				render.StrokeCircle(overlay, c.X, c.Y, q.Radius*1.5, 1, noneShade)
			}
		}
	}

	doc := &Document{
		RunID:        uuid.NewString(),
		Template:     tmpl.Name,
		GradedAt:     time.Now().UTC(),
		Threshold:    res.Threshold,
		Registration: res.Registration,
		Questions:    res.Questions,
	}
	return overlay, doc, nil
}

// drawCross paints an X spanning the bubble.
func drawCross(buf *raster.Buffer, cx, cy, r float64) {
	d := int(r * 0.9)
	x, y := int(cx+0.5), int(cy+0.5)
	render.DrawLine(buf, x-d, y-d, x+d, y+d, 2, ambiguousShade)
	render.DrawLine(buf, x-d, y+d, x+d, y-d, 2, ambiguousShade)
}
