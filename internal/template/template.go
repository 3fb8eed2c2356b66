// Package template defines the sheet layout model: page size, alignment
// markers and the bubble grid. Coordinates are pixels at template scale
// with the origin at the top-left corner; x grows right, y grows down.
package template

import (
	"encoding/json"
	"fmt"
	"os"

	"markscan/pkg/geometry"
)

// MarkerShape is the fiducial shape drawn at marker positions.
type MarkerShape string

const (
	MarkerSquare MarkerShape = "square"
	MarkerCircle MarkerShape = "circle"
)

// Marker is a solid fiducial at a known template coordinate, used to
// register scanned images against template space.
type Marker struct {
	Position geometry.Point2D `json:"position"`
	Shape    MarkerShape      `json:"shape"`
	Size     float64          `json:"size"` // edge length or diameter in px
}

// Question is one row of selectable bubbles. The option count is the
// number of bubble centers; option indices are positional.
type Question struct {
	ID      string             `json:"id"`
	Label   string             `json:"label,omitempty"`
	Bubbles []geometry.Point2D `json:"bubbles"`
	Radius  float64            `json:"radius"`
	// Threshold, when positive, overrides the global fill threshold for
	// this question.
	Threshold float64 `json:"threshold,omitempty"`
}

// Options returns the number of selectable options.
func (q Question) Options() int { return len(q.Bubbles) }

// Template is the full layout for a single sheet. It is loaded once and
// immutable afterwards; all pipeline stages share it read-only.
type Template struct {
	Name       string     `json:"name"`
	PageWidth  float64    `json:"page_width"`
	PageHeight float64    `json:"page_height"`
	Markers    []Marker   `json:"markers"`
	Questions  []Question `json:"questions"`
}

// ValidationError reports a malformed or out-of-bounds template. Field
// names the offending marker or question.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid template: %s: %s", e.Field, e.Reason)
}

func validationErrf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// markerCollinearTolerance is the perpendicular distance in pixels below
// which markers count as lying on one line.
const markerCollinearTolerance = 1.0

// Validate checks the structural invariants the grading pipeline relies
// on: at least three non-collinear markers, at least two options per
// question, unique question IDs, and every marker and bubble inside the
// page bounds.
func (t *Template) Validate() error {
	if t.PageWidth < 1 || t.PageHeight < 1 {
		return validationErrf("page", "dimensions %.0fx%.0f must be positive", t.PageWidth, t.PageHeight)
	}
	page := geometry.NewRect(0, 0, t.PageWidth, t.PageHeight)

	if len(t.Markers) < 3 {
		return validationErrf("markers", "need at least 3 markers to register, have %d", len(t.Markers))
	}
	positions := make([]geometry.Point2D, len(t.Markers))
	for i, m := range t.Markers {
		if m.Size <= 0 {
			return validationErrf(fmt.Sprintf("markers[%d]", i), "size %.2f must be positive", m.Size)
		}
		if m.Shape != MarkerSquare && m.Shape != MarkerCircle {
			return validationErrf(fmt.Sprintf("markers[%d]", i), "unknown shape %q", m.Shape)
		}
		if !page.Contains(m.Position) {
			return validationErrf(fmt.Sprintf("markers[%d]", i),
				"position (%.1f, %.1f) outside page", m.Position.X, m.Position.Y)
		}
		positions[i] = m.Position
	}
	if geometry.Collinear(positions, markerCollinearTolerance) {
		return validationErrf("markers", "marker positions are collinear")
	}

	seen := make(map[string]bool, len(t.Questions))
	for i, q := range t.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if q.ID == "" {
			return validationErrf(field, "missing id")
		}
		if seen[q.ID] {
			return validationErrf(field, "duplicate id %q", q.ID)
		}
		seen[q.ID] = true
		if len(q.Bubbles) < 2 {
			return validationErrf(field, "question %q has %d options, need at least 2", q.ID, len(q.Bubbles))
		}
		if q.Radius <= 0 {
			return validationErrf(field, "bubble radius %.2f must be positive", q.Radius)
		}
		if q.Threshold < 0 || q.Threshold > 1 {
			return validationErrf(field, "threshold override %.2f outside (0,1]", q.Threshold)
		}
		for j, b := range q.Bubbles {
			if !page.Contains(b) {
				return validationErrf(fmt.Sprintf("%s.bubbles[%d]", field, j),
					"center (%.1f, %.1f) outside page", b.X, b.Y)
			}
		}
	}
	return nil
}

// Parse decodes a template from JSON and validates it.
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, validationErrf("template", "malformed JSON: %v", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadFile reads and parses a template JSON file.
func LoadFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	return Parse(data)
}

// Marshal serializes the template as indented JSON.
func (t *Template) Marshal() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}
