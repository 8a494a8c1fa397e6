package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seantiz/groundstate/internal/api"
	"github.com/seantiz/groundstate/internal/builtin"
	"github.com/seantiz/groundstate/internal/engine"
	"github.com/seantiz/groundstate/internal/store"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := flags.resolveConfig()
			if addr != "" {
				cfg.ListenAddr = addr
			}
			logger := cfg.NewLogger(cmd.OutOrStdout())

			logger.Info("groundstate: starting",
				"listen_addr", cfg.ListenAddr,
				"db_path", cfg.DBPath,
			)

			reg, err := builtin.Registry()
			if err != nil {
				return fmt.Errorf("build registry: %w", err)
			}

			db, err := store.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			eng := engine.New(reg, logger, engine.WithStore(db))
			return api.NewServer(cfg.ListenAddr, db, eng, logger).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $GROUNDSTATE_LISTEN_ADDR)")
	return cmd
}
