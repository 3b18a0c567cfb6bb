package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	stackgen "github.com/cleanserverless/stackgen"
	"github.com/cleanserverless/stackgen/internal/validation"
)

// newValidateCmd creates the "validate" subcommand for checking the rendered template.
func newValidateCmd(root *rootOptions) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the rendered template with cfn-lint",
		Long: `Validate builds the template and runs cfn-lint rules against it.

Checks performed:
  - Resource properties match the CloudFormation schema
  - References and GetAtt targets exist
  - Best-practice warnings

Examples:
    stackgen validate
    stackgen validate --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, g, err := loadGraph(root)
			if err != nil {
				return err
			}
			tmpl, err := render(cfg, g)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			lintResult, err := validation.ValidateTemplate(tmpl)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			return outputValidateResult(cmd.OutOrStdout(), lintResult.Summary(len(tmpl.Resources)), outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func outputValidateResult(w io.Writer, result stackgen.ValidateResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))

	case "text":
		if result.Success {
			fmt.Fprintf(w, "Validation passed: %d resources OK\n", result.Resources)
			for _, warnMsg := range result.Warnings {
				fmt.Fprintf(w, "  WARNING: %s\n", warnMsg)
			}
			return nil
		}

		fmt.Fprintln(w, "Validation FAILED:")
		for _, errMsg := range result.Errors {
			fmt.Fprintf(w, "  ERROR: %s\n", errMsg)
		}
		for _, warnMsg := range result.Warnings {
			fmt.Fprintf(w, "  WARNING: %s\n", warnMsg)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		return fmt.Errorf("validation failed with %d errors", len(result.Errors))
	}
	return nil
}
