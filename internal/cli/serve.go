package cli

import (
	"github.com/spf13/cobra"

	"markscan/internal/registration"
	"markscan/internal/web"
)

func newServeCommand(r *root) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the grading web dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			regCfg := registration.DefaultConfig()
			regCfg.MaxRotationDeg = r.cfg.MaxRotationDeg
			srv := web.NewServer(r.logger, r.cfg.Threshold, regCfg)
			return srv.ListenAndServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
