package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/viant/scatter"
	"github.com/viant/scatter/metrics"
	"github.com/viant/scatter/progress"
	"github.com/viant/scatter/tracing"
)

var (
	configURL string // Config location, any afs URL
	logLevel  string // Log verbosity level
	samples   int    // Trials per evaluation, overrides config

	metricsAddr string // Prometheus listen address, disabled when empty
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "scatter",
	Short: "Scatter/gather sampling coordinator for heuristic parameter tuning",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return tracing.Shutdown(context.Background())
	},
}

// loadConfig reads --config when given and applies flag overrides
func loadConfig(ctx context.Context) (*scatter.Config, error) {
	config := scatter.DefaultConfig()
	if configURL != "" {
		var err error
		if config, err = scatter.LoadConfig(ctx, configURL, nil); err != nil {
			return nil, err
		}
	}
	if samples > 0 {
		config.Samples = samples
		config.Seeds = nil
	}
	return config, nil
}

// newService creates a coordinator that logs progress at trace level
func newService(ctx context.Context, config *scatter.Config) (*scatter.Service, error) {
	return scatter.New(ctx, config, scatter.WithMetrics(serveMetrics(ctx)), scatter.WithProgress(func(p progress.Progress) {
		logrus.WithFields(logrus.Fields{
			"dispatched": p.Dispatched,
			"completed":  p.Completed,
			"pending":    p.Pending,
			"failed":     p.Failed,
		}).Trace("progress")
	}))
}

// serveMetrics exposes a new registry on --metrics until ctx is done. It
// returns nil when --metrics is not set.
func serveMetrics(ctx context.Context) *metrics.Metrics {
	if metricsAddr == "" {
		return nil
	}
	ret := metrics.New()
	mux := http.NewServeMux()
	mux.Handle("/metrics", ret.Handler())
	server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).WithField("addr", metricsAddr).Error("metrics server stopped")
		}
	}()
	return ret
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configURL, "config", "", "Config file URL (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.PersistentFlags().IntVar(&samples, "samples", 0, "Trials per evaluation; seeds are 0..samples-1")
	rootCmd.AddCommand(evaluateCmd, optimizeCmd, workerCmd)
}
