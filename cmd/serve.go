package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"genprovider/internal/server"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			if port != 0 {
				if port < 0 || port > 65535 {
					return fmt.Errorf("port override %d must be a valid TCP port", port)
				}
				cfg.Server.Port = port
			}

			orch, err := newOrchestrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, orch)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port from configuration")
	return cmd
}
