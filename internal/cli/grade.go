package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"markscan/internal/codec"
	"markscan/internal/evaluate"
	"markscan/internal/registration"
	"markscan/internal/template"
)

func newGradeCommand(r *root) *cobra.Command {
	var threshold float64
	var resultPath, overlayPath string

	cmd := &cobra.Command{
		Use:   "grade <template.json> <scan>",
		Short: "Grade a scanned sheet against a template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmplPath, scanPath := args[0], args[1]

			tmpl, err := template.LoadFile(tmplPath)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(scanPath)
			if err != nil {
				return fmt.Errorf("read scan: %w", err)
			}
			scan, err := codec.Decode(data)
			if err != nil {
				return err
			}

			if threshold <= 0 {
				threshold = r.cfg.Threshold
			}
			regCfg := registration.DefaultConfig()
			regCfg.MaxRotationDeg = r.cfg.MaxRotationDeg

			overlay, doc, err := evaluate.Grade(scan, tmpl, threshold, regCfg)
			if err != nil {
				return err
			}

			resultJSON, err := doc.Marshal()
			if err != nil {
				return err
			}
			if resultPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(resultJSON))
			} else if err := os.WriteFile(resultPath, resultJSON, 0o644); err != nil {
				return fmt.Errorf("write result: %w", err)
			}

			if overlayPath != "" {
				img, err := codec.Encode(overlay, formatForPath(overlayPath))
				if err != nil {
					return err
				}
				if err := os.WriteFile(overlayPath, img, 0o644); err != nil {
					return fmt.Errorf("write overlay: %w", err)
				}
			}

			r.logger.Info("sheet graded",
				"run", doc.RunID,
				"questions", len(doc.Questions),
				"registration", fmt.Sprintf("%.2f", doc.Registration))
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "fill ratio threshold in (0,1] (default from config)")
	cmd.Flags().StringVar(&resultPath, "output", "", "write the result JSON here instead of stdout")
	cmd.Flags().StringVar(&overlayPath, "overlay", "", "write the annotated overlay image here")
	return cmd
}
