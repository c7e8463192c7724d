package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "kartta",
		Short: "GCP Asset Graph Engine",
		Long: `Kartta - GCP Asset Graph Engine

Kartta syncs Google Cloud assets into a local property graph.
Each run fetches assets project by project, merges them as nodes
and relationships under one update tag, and removes assets that
disappeared from the cloud. The graph is the inventory.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Kartta {{.Version}} - GCP Asset Graph Engine
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "kartta.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
