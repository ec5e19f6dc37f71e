package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/viant/scatter/service/study"
)

var trials int // Candidates to evaluate, overrides config

// optimizeCmd searches the parameter space, evaluating each candidate
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Search the parameter space for the lowest fitness",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		config, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		if trials > 0 {
			config.Study.Trials = trials
		}
		srv, err := newService(ctx, config)
		if err != nil {
			return err
		}
		search, err := study.New(config.Study.Name, config.Study.Space, config.Study.Seed)
		if err != nil {
			return err
		}
		for _, candidate := range config.Study.Enqueue {
			if err = search.Enqueue(candidate); err != nil {
				return err
			}
		}
		objective := func(ctx context.Context, blob []byte) (float64, error) {
			return srv.Evaluate(ctx, blob, nil)
		}
		best, err := search.Optimize(ctx, objective, config.Study.Trials)
		if best != nil {
			encoded, _ := json.Marshal(best)
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		}
		if err != nil && ctx.Err() != nil && best != nil {
			return nil
		}
		return err
	},
}

func init() {
	optimizeCmd.Flags().IntVar(&trials, "trials", 0, "Candidates to evaluate; 0 uses config (0 there runs until interrupted)")
}
