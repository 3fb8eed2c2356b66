package cli

import (
	"github.com/spf13/cobra"

	"markscan/internal/demo"
)

func newDemoCommand(r *root) *cobra.Command {
	var dir string
	var questions int
	var seed int64

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Generate demonstration artifacts: template, sheet, synthetic scan, grading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			art, err := demo.Generate(dir, questions, seed, r.cfg.Threshold)
			if err != nil {
				return err
			}
			r.logger.Info("demo artifacts written",
				"template", art.TemplatePath,
				"sheet", art.SheetPath,
				"scan", art.FilledPath,
				"overlay", art.OverlayPath,
				"result", art.ResultPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "artifacts/demo", "output directory")
	cmd.Flags().IntVar(&questions, "questions", 20, "number of questions")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for the synthetic fill")
	return cmd
}
