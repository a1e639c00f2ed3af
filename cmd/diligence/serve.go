package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/diligence/api"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the research API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			logger := newLogger(cfg, os.Stderr)
			svc, err := newService(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeService(svc)

			srv := api.NewServer(svc, func(o *api.Options) {
				o.Addr = cfg.Server.Addr
				o.ReadTimeout = cfg.Server.ReadTimeout
				o.WriteTimeout = cfg.Server.WriteTimeout
				o.Logger = logger
			})
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
