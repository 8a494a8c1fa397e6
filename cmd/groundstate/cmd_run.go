package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/seantiz/groundstate/internal/builtin"
	"github.com/seantiz/groundstate/internal/engine"
	"github.com/seantiz/groundstate/internal/operator"
	"github.com/seantiz/groundstate/internal/result"
	"github.com/seantiz/groundstate/internal/runconfig"
	"github.com/seantiz/groundstate/internal/store"
)

// runOutput is the JSON written for each configuration.
type runOutput struct {
	Config string        `json:"config"`
	RunID  string        `json:"run_id,omitempty"`
	Status string        `json:"status,omitempty"`
	Result result.Record `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	var (
		configPaths  []string
		operatorPath string
		parallel     int
		persist      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one or more configurations against an operator",
		Long: `Run resolves and executes each --config file against the Hamiltonian in
--operator. Several configurations run concurrently. Results are written to
stdout as JSON, one entry per configuration, in the order given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := flags.resolveConfig()
			logger := cfg.NewLogger(cmd.ErrOrStderr())

			op, err := operator.LoadFile(operatorPath)
			if err != nil {
				return fmt.Errorf("load operator: %w", err)
			}

			jobs := make([]engine.Job, len(configPaths))
			for i, path := range configPaths {
				c, err := runconfig.LoadFile(path)
				if err != nil {
					return err
				}
				jobs[i] = engine.Job{Config: c, Payload: op}
			}

			reg, err := builtin.Registry()
			if err != nil {
				return fmt.Errorf("build registry: %w", err)
			}

			var opts []engine.Option
			if persist || cmd.Flags().Changed("db") {
				db, err := store.NewSQLiteStore(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer db.Close()
				opts = append(opts, engine.WithStore(db))
			}
			eng := engine.New(reg, logger, opts...)

			results, err := eng.RunBatch(cmd.Context(), jobs, parallel)
			if err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), configPaths, results)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&configPaths, "config", "c", nil, "configuration file (.json, .yaml, .yml, .hcl); repeatable")
	f.StringVarP(&operatorPath, "operator", "o", "", "operator JSON file")
	f.IntVar(&parallel, "parallel", 0, "maximum concurrent runs (0 for no limit)")
	f.BoolVar(&persist, "persist", false, "record runs in the database")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}

// writeResults prints the batch outcome and reports whether any run failed.
func writeResults(w io.Writer, paths []string, results []engine.BatchResult) error {
	out := make([]runOutput, len(results))
	failed := 0
	for i, r := range results {
		out[i] = runOutput{Config: paths[i], Result: r.Record}
		if r.Run != nil {
			out[i].RunID = r.Run.ID
			out[i].Status = r.Run.Status
		}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
			failed++
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
	return nil
}
