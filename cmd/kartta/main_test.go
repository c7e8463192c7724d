package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yairfalse/kartta/types"
	"github.com/yairfalse/kartta/validate"
)

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"sync", "daemon", "report", "validate"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCommand_Flags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("debug"))
	assert.NotNil(t, daemonCmd.Flags().Lookup("interval"))
	assert.NotNil(t, daemonCmd.Flags().Lookup("metrics-port"))
	assert.NotNil(t, validateCmd.Flags().Lookup("strict"))
}

func TestReportLabels_CoverAllNodeTypes(t *testing.T) {
	labels := reportLabels()
	assert.Contains(t, labels, types.LabelProject)
	assert.Contains(t, labels, types.LabelCloudFunction)
	assert.Contains(t, labels, types.LabelBucket)
	assert.Contains(t, labels, types.LabelBucketLabel)
}

func TestPrintViolations_DoesNotPanic(t *testing.T) {
	printViolations(nil)
	printViolations([]validate.Violation{
		{NodeID: "n1", Label: "GCPCloudFunction", Rule: "malformed_function_id", Description: "bad id", Severity: "high"},
	})
}
