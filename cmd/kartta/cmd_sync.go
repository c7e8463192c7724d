package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync of all configured projects",
	Long: `Run a single sync pass over every project in the configuration.

For each project, Kartta fetches the enabled asset types, merges them
into the graph under one update tag, and removes assets that were not
seen in this run. Removals can be blocked by protection policies.`,
	Example: `  kartta sync                        # Sync with ./kartta.yaml
  kartta sync -c prod.yaml           # Sync with a specific config
  kartta sync --debug                # Verbose logging`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	shutdownTelemetry := initTelemetry(ctx)
	defer shutdownTelemetry()

	eng, err := setupEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	fmt.Printf("🔄 Syncing %d project(s)...\n", len(eng.cfg.Projects))

	start := time.Now()
	updateTag, err := eng.syncer.SyncAll(ctx, eng.cfg.Projects)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("✅ Sync complete in %s (update tag %d)\n", time.Since(start).Round(time.Millisecond), updateTag)
	printGraphCounts(eng)
	return nil
}
