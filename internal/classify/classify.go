// Package classify samples each template bubble in a registered scan,
// computes its fill ratio and resolves per-question answers.
//
// Normalization scheme: for every bubble, the page background intensity
// is estimated locally from the annular ring 1.5r to 2.5r around the
// mapped bubble. A sampled pixel counts as ink when it is darker than the
// midpoint between that local background and full black. The fill ratio
// is the fraction of ink pixels over the sampled disk. Sampling covers
// the inner 80% of the bubble radius so the printed outline does not
// count toward the ratio.
package classify

import (
	"fmt"
	"math"

	"markscan/internal/registration"
	"markscan/internal/template"
	"markscan/pkg/geometry"
	"markscan/pkg/raster"
)

// Status describes how a question resolved.
type Status string

const (
	// StatusSelected means exactly one bubble was filled.
	StatusSelected Status = "selected"
	// StatusNone means no bubble reached the threshold.
	StatusNone Status = "none"
	// StatusAmbiguous means more than one bubble was filled; all filled
	// indices are reported and none is picked.
	StatusAmbiguous Status = "ambiguous"
)

// innerSampleFraction shrinks the sampled disk so the bubble's printed
// outline stays outside it.
const innerSampleFraction = 0.8

// ClassificationError reports an unusable threshold.
type ClassificationError struct {
	Threshold float64
	Context   string
}

func (e *ClassificationError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("classification: threshold %.3f outside (0,1] (%s)", e.Threshold, e.Context)
	}
	return fmt.Sprintf("classification: threshold %.3f outside (0,1]", e.Threshold)
}

// QuestionResult is the resolved answer for one question.
type QuestionResult struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Selected   int       `json:"selected"` // option index, -1 unless Status == selected
	Filled     []int     `json:"filled,omitempty"`
	FillRatios []float64 `json:"fill_ratios"`
	Threshold  float64   `json:"threshold"` // effective threshold for this question
}

// Result is the grading outcome for one sheet. It is immutable after
// creation and safe to share.
type Result struct {
	Questions    []QuestionResult         `json:"questions"`
	Threshold    float64                  `json:"threshold"` // global threshold
	Transform    geometry.AffineTransform `json:"-"`
	Registration float64                  `json:"registration_confidence"`
}

// Classifier grades registered scans with a fixed global threshold.
type Classifier struct {
	threshold float64
}

// New creates a Classifier. The threshold must lie in (0,1].
func New(threshold float64) (*Classifier, error) {
	if threshold <= 0 || threshold > 1 || math.IsNaN(threshold) {
		return nil, &ClassificationError{Threshold: threshold, Context: "global"}
	}
	return &Classifier{threshold: threshold}, nil
}

// Classify samples every bubble of the template through the registration
// transform and resolves per-question answers. Question-level threshold
// overrides from the template take precedence over the global threshold.
func (c *Classifier) Classify(buf *raster.Buffer, tmpl *template.Template, reg *registration.Result) (*Result, error) {
	scale := reg.Transform.ScaleFactor()

	out := &Result{
		Questions:    make([]QuestionResult, 0, len(tmpl.Questions)),
		Threshold:    c.threshold,
		Transform:    reg.Transform,
		Registration: reg.Confidence,
	}

	for _, q := range tmpl.Questions {
		threshold := c.threshold
		if q.Threshold > 0 {
			if q.Threshold > 1 {
				return nil, &ClassificationError{Threshold: q.Threshold, Context: "question " + q.ID}
			}
			threshold = q.Threshold
		}

		qr := QuestionResult{
			ID:         q.ID,
			Selected:   -1,
			FillRatios: make([]float64, len(q.Bubbles)),
			Threshold:  threshold,
		}

		for i, center := range q.Bubbles {
			mapped := reg.Transform.Apply(center)
			qr.FillRatios[i] = fillRatio(buf, mapped, q.Radius*scale)
			if qr.FillRatios[i] >= threshold {
				qr.Filled = append(qr.Filled, i)
			}
		}

		switch len(qr.Filled) {
		case 0:
			qr.Status = StatusNone
		case 1:
			qr.Status = StatusSelected
			qr.Selected = qr.Filled[0]
		default:
			qr.Status = StatusAmbiguous
		}
		out.Questions = append(out.Questions, qr)
	}
	return out, nil
}

// fillRatio samples the inner disk of a mapped bubble and returns the
// fraction of pixels darker than the local ink cutoff.
func fillRatio(buf *raster.Buffer, center geometry.Point2D, radius float64) float64 {
	background := localBackground(buf, center, radius)
	cutoff := background / 2 // midpoint between local paper and full ink

	r := radius * innerSampleFraction
	if r < 1 {
		r = 1
	}
	cx, cy := center.X, center.Y
	r2 := r * r

	var ink, total int
	for y := int(cy - r); y <= int(cy+r+1); y++ {
		dy := float64(y) - cy
		for x := int(cx - r); x <= int(cx+r+1); x++ {
			dx := float64(x) - cx
			if dx*dx+dy*dy > r2 {
				continue
			}
			total++
			if float64(buf.At(x, y)) < cutoff {
				ink++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(ink) / float64(total)
}

// localBackground estimates the paper intensity around a bubble from the
// annulus 1.5r to 2.5r. Pixels darker than half of the ring's maximum
// (neighboring bubbles, outlines) are excluded from the mean.
func localBackground(buf *raster.Buffer, center geometry.Point2D, radius float64) float64 {
	cx, cy := int(center.X+0.5), int(center.Y+0.5)
	innerR := int(radius*1.5 + 0.5)
	outerR := int(radius*2.5 + 0.5)

	var maxVal uint8
	values := make([]uint8, 0, 4*outerR*outerR)
	for dy := -outerR; dy <= outerR; dy++ {
		for dx := -outerR; dx <= outerR; dx++ {
			d2 := dx*dx + dy*dy
			if d2 < innerR*innerR || d2 > outerR*outerR {
				continue
			}
			v := buf.At(cx+dx, cy+dy)
			values = append(values, v)
			if v > maxVal {
				maxVal = v
			}
		}
	}
	if len(values) == 0 {
		return 255
	}

	floor := uint8(maxVal / 2)
	var sum, count int
	for _, v := range values {
		if v >= floor {
			sum += int(v)
			count++
		}
	}
	if count == 0 {
		return float64(maxVal)
	}
	return float64(sum) / float64(count)
}
