package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yairfalse/kartta/graph"
	"github.com/yairfalse/kartta/types"
)

var (
	reportFormat string
	reportRuns   int
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report on graph contents and recent changes",
	Long: `Report what the graph holds and what changed between sync runs:
- Node counts per label
- Recent sync runs and their update tags
- Created, updated and removed nodes since the previous run
- Write-ahead log statistics`,
	Example: `  kartta report                # Summary of graph and last run
  kartta report --runs 5       # Show the last 5 sync runs
  kartta report --format json  # Machine-readable output`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "table", "Output format: table, json")
	reportCmd.Flags().IntVar(&reportRuns, "runs", 3, "Number of recent runs to show")
}

func runReport(cmd *cobra.Command, args []string) error {
	eng, err := setupEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer eng.Close()

	runs, err := eng.store.RecentRuns(reportRuns)
	if err != nil {
		return fmt.Errorf("failed to load recent runs: %w", err)
	}

	var changes *graph.ChangeSet
	if len(runs) >= 2 {
		changes, err = eng.store.ChangesBetween(runs[1].UpdateTag, runs[0].UpdateTag)
		if err != nil {
			return fmt.Errorf("failed to compute changes: %w", err)
		}
	}

	if reportFormat == "json" {
		return printReportJSON(eng, runs, changes)
	}
	return printReportTable(eng, runs, changes)
}

func printReportTable(eng *engine, runs []graph.Run, changes *graph.ChangeSet) error {
	fmt.Println("📊 Kartta Graph Report")
	fmt.Println()

	printGraphCounts(eng)

	if len(runs) == 0 {
		fmt.Println("\nNo sync runs recorded yet. Run 'kartta sync' first.")
		return nil
	}

	fmt.Println("\nRecent runs:")
	for _, run := range runs {
		fmt.Printf("  %s  tag=%d  projects=%d\n",
			run.StartedAt.Format("2006-01-02 15:04:05"), run.UpdateTag, len(run.Projects))
	}

	if changes != nil {
		summary := changes.Summary()
		fmt.Printf("\nChanges since previous run (%d → %d):\n", changes.SinceTag, changes.UntilTag)
		fmt.Printf("  created: %d  updated: %d  removed: %d\n",
			summary[graph.ChangeCreated], summary[graph.ChangeUpdated], summary[graph.ChangeRemoved])
		for _, change := range changes.Changes {
			if change.Type == graph.ChangeUpdated {
				continue // updates are noise in the table view
			}
			fmt.Printf("  %-8s %s (%s)\n", change.Type, change.NodeID, change.Label)
		}
	}

	stats := eng.wal.GetStats()
	fmt.Printf("\nWAL: %d file(s), %d entries, %d bytes\n",
		stats.TotalFiles, stats.EntryCount, stats.TotalSizeBytes)

	return nil
}

func printReportJSON(eng *engine, runs []graph.Run, changes *graph.ChangeSet) error {
	report := struct {
		NodeCounts map[string]int   `json:"node_counts"`
		Runs       []graph.Run      `json:"runs"`
		Changes    *graph.ChangeSet `json:"changes,omitempty"`
	}{
		NodeCounts: nodeCounts(eng),
		Runs:       runs,
		Changes:    changes,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func nodeCounts(eng *engine) map[string]int {
	counts := make(map[string]int)
	for _, label := range reportLabels() {
		counts[string(label)] = eng.store.CountNodes(label)
	}
	return counts
}

func printGraphCounts(eng *engine) {
	fmt.Println("Nodes in graph:")
	for _, label := range reportLabels() {
		fmt.Printf("  %-20s %d\n", label, eng.store.CountNodes(label))
	}
}

func reportLabels() []types.Label {
	return []types.Label{
		types.LabelProject,
		types.LabelCloudFunction,
		types.LabelServiceAccount,
		types.LabelBucket,
		types.LabelBucketLabel,
	}
}
