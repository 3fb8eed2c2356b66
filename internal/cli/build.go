package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"markscan/internal/codec"
	"markscan/internal/render"
	"markscan/internal/template"
)

func newBuildCommand(r *root) *cobra.Command {
	var noGuides bool
	var scale float64

	cmd := &cobra.Command{
		Use:   "build <template.json> <output>",
		Short: "Render a template into a printable sheet image",
		Long: "Render a template into a printable sheet image. The output format\n" +
			"follows the destination suffix: .png for the compressed binary\n" +
			"format, anything else for plain-text PGM.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmplPath, outPath := args[0], args[1]

			tmpl, err := template.LoadFile(tmplPath)
			if err != nil {
				return err
			}

			if scale <= 0 {
				scale = r.cfg.Scale
			}
			opts := render.Options{
				ShowOptionGuides: r.cfg.OptionGuides && !noGuides,
				Scale:            scale,
			}
			sheet, err := render.New(opts).Render(tmpl)
			if err != nil {
				return err
			}

			format := formatForPath(outPath)
			data, err := codec.Encode(sheet, format)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("write sheet: %w", err)
			}

			r.logger.Info("sheet rendered",
				"template", tmpl.Name,
				"size", fmt.Sprintf("%dx%d", sheet.Width, sheet.Height),
				"format", format.String(),
				"path", outPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noGuides, "no-guides", false, "omit option letters inside bubbles")
	cmd.Flags().Float64Var(&scale, "scale", 0, "stroke width scale (default from config)")
	return cmd
}
