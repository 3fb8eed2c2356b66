package cli

import (
	"path/filepath"
	"strings"

	"markscan/internal/codec"
)

// formatForPath maps a destination suffix to a raster format. Anything
// that is not the compressed format's canonical suffix falls back to the
// plain-text format.
func formatForPath(path string) codec.Format {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return codec.FormatPNG
	}
	return codec.FormatPGM
}
