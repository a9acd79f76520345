package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/gauntlet/internal/server"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Gauntlet HTTP server",
	Long: `Start the Gauntlet HTTP server.

Endpoints:
  GET  /runtimes      installed runtimes
  POST /execute       run one program
  POST /tests         run a program against a test suite
  GET  /api/runs      run history (GET /api/runs/{id} for one run)
  GET  /api/runs/ws   stream test results over a WebSocket
  GET  /metrics       Prometheus metrics

Examples:
  gauntlet serve
  gauntlet serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	profile := a.svc.Profile()
	a.log.Info().
		Str("engine", a.cfg.Engine.ExecuteURL).
		Str("profile", profile.Name).
		Str("cache", a.cfg.Cache.Backend).
		Msg("configured")

	// Determine port
	port := a.cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	srv := server.New(a.svc, server.Options{
		RateLimit:   a.cfg.Server.RateLimit,
		RateBurst:   a.cfg.Server.RateBurst,
		LimiterIdle: a.cfg.Server.LimiterIdle,
		TrustProxy:  a.cfg.Server.TrustProxy,
	}, a.log)

	// Expired in-process cache entries and idle rate-limit buckets are
	// otherwise only dropped when touched again.
	if a.cfg.Cache.SweepSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(a.cfg.Cache.SweepSchedule, func() {
			if a.cfg.Cache.Backend == "memory" {
				a.svc.Sweep()
			}
			srv.SweepLimiters()
		}); err != nil {
			return fmt.Errorf("scheduling sweep: %w", err)
		}
		c.Start()
		defer c.Stop()
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		srv.Shutdown(context.Background())
	}()

	if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
