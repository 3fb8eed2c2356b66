// Package cli implements the markscan command-line interface.
//
// Commands:
//   - build: render a template JSON into a printable sheet image
//   - grade: grade a scanned sheet against a template
//   - demo:  generate a full set of demonstration artifacts
//   - serve: run the grading web dashboard
//
// The CLI maps file suffixes to raster formats and exit codes to typed
// core failures; the core packages themselves never see filenames.
package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// newLogger creates the CLI logger with timestamp formatting.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// root wires shared state into the subcommands.
type root struct {
	cfgPath string
	verbose bool

	cfg    Config
	logger *log.Logger
}

// NewRootCommand builds the markscan command tree.
func NewRootCommand() *cobra.Command {
	r := &root{}

	cmd := &cobra.Command{
		Use:           "markscan",
		Short:         "Build and grade optical-mark answer sheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := log.InfoLevel
			if r.verbose {
				level = log.DebugLevel
			}
			r.logger = newLogger(os.Stderr, level)

			cfg, err := loadConfig(r.cfgPath)
			if err != nil {
				return err
			}
			r.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&r.cfgPath, "config", "", "path to a markscan.toml config file")
	cmd.PersistentFlags().BoolVarP(&r.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newBuildCommand(r),
		newGradeCommand(r),
		newDemoCommand(r),
		newServeCommand(r),
	)
	return cmd
}

// Execute runs the CLI and reports errors on stderr.
func Execute() error {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		newLogger(os.Stderr, log.InfoLevel).Error(err.Error())
		return err
	}
	return nil
}
