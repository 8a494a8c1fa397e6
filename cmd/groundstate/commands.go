package main

import (
	"github.com/spf13/cobra"

	"github.com/seantiz/groundstate/internal/config"
)

// globalFlags are shared by every subcommand. Empty values fall back to the
// environment configuration.
type globalFlags struct {
	logLevel  string
	logFormat string
	dbPath    string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "groundstate",
		Short: "Compute ground-state energies of qubit Hamiltonians",
		Long: `groundstate assembles quantum algorithms, backends and optimizers from a
declarative configuration and runs them against a Pauli-operator Hamiltonian.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default $GROUNDSTATE_LOG_LEVEL)")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: json or text (default $GROUNDSTATE_LOG_FORMAT)")
	pf.StringVar(&flags.dbPath, "db", "", "SQLite database path (default $GROUNDSTATE_DB_PATH)")

	root.AddCommand(
		newServeCmd(&flags),
		newRunCmd(&flags),
		newComponentsCmd(),
	)
	return root
}

// resolveConfig applies command-line overrides to the environment config.
func (f *globalFlags) resolveConfig() config.Config {
	cfg := config.Load()
	if f.logLevel != "" {
		cfg.LogLevel = config.ParseLogLevel(f.logLevel)
	}
	if f.logFormat != "" {
		cfg.LogFormat = f.logFormat
	}
	if f.dbPath != "" {
		cfg.DBPath = f.dbPath
	}
	return cfg
}
