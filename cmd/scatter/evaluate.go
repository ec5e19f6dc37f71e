package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	params     string // Parameter blob handed to every trial
	seeds      []int  // Explicit seeds
	showScores bool   // Print per-seed scores instead of fitness
)

// evaluateCmd computes the fitness of one parameter blob
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Sample trials for a parameter blob and print its fitness",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		config, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		srv, err := newService(ctx, config)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if showScores {
			scores, err := srv.Sample(ctx, []byte(params), seeds)
			for _, seed := range scores.Seeds() {
				fmt.Fprintln(out, seed, scores[seed])
			}
			return err
		}
		fitness, err := srv.Evaluate(ctx, []byte(params), seeds)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, fitness)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&params, "params", "", "Parameter blob (JSON) passed to the heuristic")
	evaluateCmd.Flags().IntSliceVar(&seeds, "seeds", nil, "Comma-separated seeds; overrides --samples")
	evaluateCmd.Flags().BoolVar(&showScores, "scores", false, "Print 'seed score' lines sorted by seed")
}
