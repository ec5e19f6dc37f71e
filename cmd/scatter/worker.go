package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/viant/scatter"
	"github.com/viant/scatter/metrics"
	"github.com/viant/scatter/service/worker"
)

var addr string // Listen address, overrides config

// workerCmd serves trial invocations over HTTP
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Serve trial invocations and publish scores to the completion queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		config, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		if addr != "" {
			config.Worker.Addr = addr
		}
		queue, err := scatter.NewQueue(ctx, config.Remote.Queue, nil)
		if err != nil {
			return err
		}
		srv, err := worker.New(config.Worker, nil, queue)
		if err != nil {
			return err
		}
		registry := metrics.New()
		handler := worker.NewHandler(srv.WithMetrics(registry))
		mux := http.NewServeMux()
		mux.Handle("/metrics", registry.Handler())
		mux.Handle("/", handler)
		server := &http.Server{Addr: config.Worker.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		logrus.WithField("addr", config.Worker.Addr).Info("worker listening")
		if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logrus.Info("waiting for running trials")
		handler.Wait()
		return nil
	},
}

func init() {
	workerCmd.Flags().StringVar(&addr, "addr", "", "Listen address; overrides worker.addr")
}
