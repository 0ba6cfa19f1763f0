package main

import (
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/DogLicense/internal/app"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				c.cfg.Address = addr
			}
			return app.Serve(cmd.Context(), c.cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from DOGLICENSE_ADDRESS)")
	return cmd
}

func newWorkerCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the asynq certificate review worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunWorker(cmd.Context(), c.cfg)
		},
	}
}
