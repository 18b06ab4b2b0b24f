package main

import (
	"github.com/spf13/cobra"

	"github.com/lexcodex/zeekls/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve LSP over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("starting language server")
			srv := server.New(cfg, logger)
			return srv.RunStdio(cmd.Context())
		},
	}
	return cmd
}
