package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eXcomm/mpenc-go/config"
	"github.com/eXcomm/mpenc-go/health"
	"github.com/eXcomm/mpenc-go/internal/logger"
	"github.com/eXcomm/mpenc-go/internal/metrics"
	"github.com/spf13/cobra"
)

var (
	serveConfigPath string
	serveAddr       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Prometheus metrics and health endpoints",
	Long: `serve starts an HTTP server exposing /metrics (Prometheus exposition
format) and /healthz (aggregate JSON health status), using the
handshake/session configuration loaded from --config if given.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "path to a YAML or JSON config file")
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":9090", "listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.GetDefaultLogger()

	cfg := &config.Config{}
	if serveConfigPath != "" {
		loaded, err := config.LoadFromFile(serveConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	checker := health.NewHealthChecker(5 * time.Second)
	checker.SetLogger(log)
	checker.RegisterCheck("handshake_config", func(ctx context.Context) error {
		if cfg.Handshake != nil && cfg.Handshake.MaxRetries < 0 {
			return fmt.Errorf("invalid handshake configuration")
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		sys := checker.GetSystemHealth(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if sys.Status != health.StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(sys)
	})

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("serving metrics and health endpoints", logger.String("addr", serveAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server exited", logger.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
