// Package registration locates the template's alignment markers in a
// scanned raster and solves the affine mapping from template space to
// image space.
//
// The pipeline: binarize against an Otsu threshold, collect connected
// dark components, keep components whose size, aspect ratio and fill
// density match the expected fiducial, rank them by density times
// contrast against the surrounding paper, assign the best candidate to
// each expected marker position under a coarse scale estimate, then solve
// a least-squares affine fit over the matched pairs.
package registration

import (
	"fmt"
	"math"

	"markscan/internal/template"
	"markscan/pkg/geometry"
	"markscan/pkg/raster"
)

// Config bounds how far a scan may deviate from the template before
// registration refuses to produce a transform.
type Config struct {
	MaxRotationDeg float64 // tolerated page rotation either way
	MinScale       float64 // tolerated scale ratio lower bound
	MaxScale       float64 // tolerated scale ratio upper bound
	// MaxResidual is the mean fit residual bound, as a fraction of the
	// expected marker size in image space.
	MaxResidual float64
	// MinDensity is the minimum fill density (component area over its
	// bounding box) for a candidate. A solid square scores ~1.0 and a
	// solid circle ~0.79.
	MinDensity float64
}

// DefaultConfig returns the detection bounds used by the CLI.
func DefaultConfig() Config {
	return Config{
		MaxRotationDeg: 15,
		MinScale:       0.25,
		MaxScale:       4.0,
		MaxResidual:    0.75,
		MinDensity:     0.55,
	}
}

// Error reports a failed registration with enough context to diagnose it
// without re-running: how many markers were expected and matched, and
// which check rejected the fit.
type Error struct {
	Matched int
	Needed  int
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("registration failed (%d/%d markers matched): %s", e.Matched, e.Needed, e.Reason)
}

func regErrf(matched, needed int, format string, args ...any) *Error {
	return &Error{Matched: matched, Needed: needed, Reason: fmt.Sprintf(format, args...)}
}

// Result is a solved registration.
type Result struct {
	Transform geometry.AffineTransform
	// Residual is the mean distance in image pixels between transformed
	// marker positions and their detected candidates.
	Residual float64
	// Confidence combines candidate quality and fit residual into (0,1].
	Confidence float64
	// Matched maps template marker indexes to their detected image
	// positions. Unmatched markers are absent.
	Matched map[int]geometry.Point2D
}

// Detector locates markers with a fixed configuration.
type Detector struct {
	cfg Config
}

// NewDetector creates a Detector. Zero-valued config fields fall back to
// the defaults.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.MaxRotationDeg <= 0 {
		cfg.MaxRotationDeg = def.MaxRotationDeg
	}
	if cfg.MinScale <= 0 {
		cfg.MinScale = def.MinScale
	}
	if cfg.MaxScale <= 0 {
		cfg.MaxScale = def.MaxScale
	}
	if cfg.MaxResidual <= 0 {
		cfg.MaxResidual = def.MaxResidual
	}
	if cfg.MinDensity <= 0 {
		cfg.MinDensity = def.MinDensity
	}
	return &Detector{cfg: cfg}
}

// Locate finds the template's markers in the scanned buffer and returns
// the affine transform from template coordinates to image coordinates.
func (d *Detector) Locate(buf *raster.Buffer, tmpl *template.Template) (*Result, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}

	// Coarse scale estimate from the page-to-image dimension ratio. The
	// scan may be rotated or skewed, but fiducial layouts put markers
	// near the corners, so this gets the search regions close enough.
	scaleX := float64(buf.Width) / tmpl.PageWidth
	scaleY := float64(buf.Height) / tmpl.PageHeight
	coarse := (scaleX + scaleY) / 2
	if coarse < d.cfg.MinScale || coarse > d.cfg.MaxScale {
		return nil, regErrf(0, len(tmpl.Markers),
			"image/page scale ratio %.2f outside [%.2f, %.2f]", coarse, d.cfg.MinScale, d.cfg.MaxScale)
	}

	markerSize := expectedMarkerSize(tmpl) * coarse
	candidates := d.findCandidates(buf, markerSize)
	if len(candidates) < 3 {
		return nil, regErrf(0, len(tmpl.Markers),
			"found %d marker candidates, need at least 3", len(candidates))
	}

	matches := d.assign(tmpl, candidates, scaleX, scaleY, markerSize)
	if len(matches) < 3 {
		return nil, regErrf(len(matches), len(tmpl.Markers),
			"only %d markers confidently located", len(matches))
	}

	src := make([]geometry.Point2D, 0, len(matches))
	dst := make([]geometry.Point2D, 0, len(matches))
	matchedPos := make(map[int]geometry.Point2D, len(matches))
	var confSum float64
	for _, m := range matches {
		src = append(src, tmpl.Markers[m.markerIdx].Position)
		dst = append(dst, m.cand.center)
		matchedPos[m.markerIdx] = m.cand.center
		confSum += m.cand.confidence
	}

	transform, err := solveAffine(src, dst)
	if err != nil {
		return nil, regErrf(len(matches), len(tmpl.Markers), "affine fit: %v", err)
	}

	if math.Abs(transform.Det()) < 1e-6 {
		return nil, regErrf(len(matches), len(tmpl.Markers),
			"degenerate transform (det %.2e)", transform.Det())
	}
	if angle := math.Abs(transform.RotationAngle()) * 180 / math.Pi; angle > d.cfg.MaxRotationDeg {
		return nil, regErrf(len(matches), len(tmpl.Markers),
			"rotation %.1f° exceeds %.1f°", angle, d.cfg.MaxRotationDeg)
	}
	if s := transform.ScaleFactor(); s < d.cfg.MinScale || s > d.cfg.MaxScale {
		return nil, regErrf(len(matches), len(tmpl.Markers),
			"scale %.2f outside [%.2f, %.2f]", s, d.cfg.MinScale, d.cfg.MaxScale)
	}

	residual := meanResidual(src, dst, transform)
	maxResidual := d.cfg.MaxResidual * markerSize
	if residual > maxResidual {
		return nil, regErrf(len(matches), len(tmpl.Markers),
			"fit residual %.1fpx exceeds %.1fpx", residual, maxResidual)
	}

	confidence := (confSum / float64(len(matches))) * (1 - residual/maxResidual*0.5)
	if confidence > 1 {
		confidence = 1
	}

	return &Result{
		Transform:  transform,
		Residual:   residual,
		Confidence: confidence,
		Matched:    matchedPos,
	}, nil
}

// expectedMarkerSize returns the mean fiducial size in template pixels.
func expectedMarkerSize(tmpl *template.Template) float64 {
	var sum float64
	for _, m := range tmpl.Markers {
		sum += m.Size
	}
	return sum / float64(len(tmpl.Markers))
}

// meanResidual is the mean distance between transformed template points
// and their detected counterparts.
func meanResidual(src, dst []geometry.Point2D, t geometry.AffineTransform) float64 {
	var total float64
	for i := range src {
		total += t.Apply(src[i]).Distance(dst[i])
	}
	return total / float64(len(src))
}
