package evaluate

import (
	"markscan/internal/classify"
	"markscan/internal/registration"
	"markscan/internal/template"
	"markscan/pkg/raster"
)

// Grade runs the full single-sheet pipeline on a decoded scan: locate the
// alignment markers, classify every bubble, and build the overlay and
// result document. Each call is independent; batch drivers may run many
// sheets in parallel sharing only the read-only template.
func Grade(scan *raster.Buffer, tmpl *template.Template, threshold float64, regCfg registration.Config) (*raster.Buffer, *Document, error) {
	classifier, err := classify.New(threshold)
	if err != nil {
		return nil, nil, err
	}

	reg, err := registration.NewDetector(regCfg).Locate(scan, tmpl)
	if err != nil {
		return nil, nil, err
	}

	result, err := classifier.Classify(scan, tmpl, reg)
	if err != nil {
		return nil, nil, err
	}

	return Report(result, tmpl)
}
