package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	stackgen "github.com/cleanserverless/stackgen"
	"github.com/cleanserverless/stackgen/internal/linter"
)

func newLintCmd(root *rootOptions) *cobra.Command {
	var (
		outputFormat string
		enabled      []string
		disabled     []string
	)

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check the deployment graph for issues",
		Long: `Lint checks the deployment graph built from the parameter bag.

Rules:
    SG001: Duplicate (method, path) route
    SG002: Duplicate function name
    SG003: Malformed path or path placeholder
    SG004: Empty table display name
    SG005: Configured key names differ from the fixed PK/SK schema
    SG006: Wildcard grant scoped to every resource
    SG007: Function neither routed nor subscribed
    SG008: Route, grant or subscription pointing at an undeclared node

Only error-severity issues fail the command (exit code 2).

Examples:
    stackgen lint
    stackgen lint --format json
    stackgen lint --disable SG006`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, g, err := loadGraph(root)
			if err != nil {
				return err
			}

			result := linter.Lint(g, linter.Options{
				EnabledRules:  enabled,
				DisabledRules: disabled,
			})
			return outputLintResult(cmd.OutOrStdout(), toLintResult(result), outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringSliceVar(&enabled, "rules", nil, "Only run these rule IDs")
	cmd.Flags().StringSliceVar(&disabled, "disable", nil, "Skip these rule IDs")

	return cmd
}

func toLintResult(r linter.Result) stackgen.LintResult {
	result := stackgen.LintResult{Success: r.Success}
	for _, issue := range r.Issues {
		result.Issues = append(result.Issues, stackgen.LintIssue{
			Resource: issue.Resource,
			Severity: issue.Severity,
			Message:  issue.Message,
			Rule:     issue.Rule,
		})
	}
	return result
}

func outputLintResult(w io.Writer, result stackgen.LintResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))

	case "text":
		if len(result.Issues) == 0 {
			fmt.Fprintln(w, "No issues found.")
			return nil
		}

		for _, issue := range result.Issues {
			if issue.Resource != "" {
				fmt.Fprintf(w, "%s: %s: %s [%s]\n", issue.Resource, issue.Severity, issue.Message, issue.Rule)
			} else {
				fmt.Fprintf(w, "%s: %s [%s]\n", issue.Severity, issue.Message, issue.Rule)
			}
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		return errIssuesFound
	}
	return nil
}
