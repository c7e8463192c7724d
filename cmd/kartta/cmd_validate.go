package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yairfalse/kartta/validate"
)

var (
	validateProject string
	validateFormat  string
	validateStrict  bool
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check graph conformance",
	Long: `Check the graph against conformance rules:
- Function ids match projects/*/locations/*/functions/*
- Required properties are present
- Every function has a RESOURCE edge to its owning project
- Region properties agree with resource names
- No orphaned bucket labels`,
	Example: `  kartta validate                    # Check the whole graph
  kartta validate --project my-proj  # Check one project
  kartta validate --strict           # Exit nonzero on any violation`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateProject, "project", "p", "", "Limit checks to one project")
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "table", "Output format: table, json")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Exit with an error when violations are found")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, err := setupEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	checker := validate.NewChecker(eng.store)

	var violations []validate.Violation
	if validateProject != "" {
		violations, err = checker.CheckProject(ctx, validateProject)
	} else {
		violations, err = checker.CheckAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if validateFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(violations); err != nil {
			return err
		}
	} else {
		printViolations(violations)
	}

	if validateStrict && len(violations) > 0 {
		return fmt.Errorf("%d conformance violation(s) found", len(violations))
	}
	return nil
}

func printViolations(violations []validate.Violation) {
	if len(violations) == 0 {
		fmt.Println("✅ Graph conforms: no violations found")
		return
	}

	fmt.Printf("⚠️  %d violation(s) found:\n\n", len(violations))
	for _, v := range violations {
		fmt.Printf("  [%s] %s\n", v.Severity, v.NodeID)
		fmt.Printf("         %s: %s\n", v.Rule, v.Description)
	}
}
