package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yairfalse/kartta/internal/daemon"
)

var (
	daemonInterval    time.Duration
	daemonMetricsPort int
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run continuous sync daemon",
	Long: `Run Kartta in daemon mode for continuous asset graph syncing.

The daemon syncs all configured projects at the configured interval,
keeping the graph current and exporting metrics.

Features:
- Continuous sync loop with one update tag per run
- Prometheus metrics on /metrics endpoint
- Health checks on /health, /-/healthy, /-/ready
- Write-ahead log of every sync phase
- Graceful shutdown on SIGTERM/SIGINT`,
	Example: `  kartta daemon                      # Run with config interval
  kartta daemon --interval 5m        # Sync every 5 minutes
  kartta daemon --metrics-port 9090  # Custom metrics port`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 0, "Sync interval (overrides config)")
	daemonCmd.Flags().IntVar(&daemonMetricsPort, "metrics-port", 2112, "Metrics HTTP server port")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	shutdownTelemetry := initTelemetry(ctx)
	defer shutdownTelemetry()

	eng, err := setupEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	interval := eng.cfg.Interval
	if daemonInterval > 0 {
		interval = daemonInterval
	}

	fmt.Printf("🚀 Starting Kartta daemon...\n")
	fmt.Printf("   Projects: %d\n", len(eng.cfg.Projects))
	fmt.Printf("   Interval: %s\n", interval)
	fmt.Printf("   Metrics port: %d\n", daemonMetricsPort)
	fmt.Printf("   Storage: %s\n\n", eng.cfg.StorageDir)

	d, err := daemon.NewDaemon(eng.syncer, daemon.Config{
		Interval:    interval,
		MetricsPort: daemonMetricsPort,
		Projects:    eng.cfg.Projects,
	})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		fmt.Printf("\n📋 Received %s, shutting down gracefully...\n", sig)
		cancel()
	}()

	// Print endpoint URLs after short delay to let server start
	go func() {
		time.Sleep(200 * time.Millisecond)
		port := d.MetricsPort()
		if port > 0 {
			fmt.Printf("📊 Metrics: http://localhost:%d/metrics\n", port)
			fmt.Printf("💚 Health: http://localhost:%d/health\n\n", port)
		}
	}()

	fmt.Println("✨ Daemon running (Ctrl+C to stop)...")
	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	fmt.Println("\n👋 Daemon stopped")
	return nil
}
