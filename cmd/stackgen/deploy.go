package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleanserverless/stackgen/internal/deployer"
	"github.com/cleanserverless/stackgen/internal/linter"
)

func newDeployCmd(root *rootOptions) *cobra.Command {
	var (
		outputFormat string
		stackName    string
		pollInterval time.Duration
		skipLint     bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create or update the CloudFormation stack",
		Long: `Deploy builds the template and submits it to CloudFormation, creating the
stack if it does not exist and updating it otherwise. It waits until the stack
reaches a terminal status.

With TEMPLATE_BUCKET set the template is uploaded to S3 and submitted by URL.
Credentials come from the default AWS credential chain.

Examples:
    stackgen deploy
    stackgen deploy --stack-name micropost-dev
    stackgen deploy --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, g, err := loadGraph(root)
			if err != nil {
				return err
			}
			if stackName != "" {
				cfg.StackName = stackName
			}

			if !skipLint {
				if result := linter.Lint(g, linter.Options{}); !result.Success {
					_ = outputLintResult(cmd.ErrOrStderr(), toLintResult(result), "text")
					return fmt.Errorf("deploy aborted: lint reported errors")
				}
			}

			tmpl, err := render(cfg, g)
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}

			d, err := deployer.NewFromConfig(cmd.Context(), cfg, deployer.Options{
				Parameters:   imageParameters(cfg, g),
				PollInterval: pollInterval,
			})
			if err != nil {
				return err
			}

			result, err := d.Deploy(cmd.Context(), tmpl)
			if err != nil {
				return fmt.Errorf("deploy failed: %w", err)
			}
			return outputDeployResult(cmd.OutOrStdout(), result, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringVar(&stackName, "stack-name", "", "Stack name (default: STACK_NAME)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 10*time.Second, "Interval between stack status checks")
	cmd.Flags().BoolVar(&skipLint, "skip-lint", false, "Submit even when lint reports errors")

	return cmd
}

func outputDeployResult(w io.Writer, result *deployer.Result, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))

	case "text":
		fmt.Fprintf(w, "Stack %s: %s (%s)\n", result.StackName, result.Status, result.Action)

		keys := make([]string, 0, len(result.Outputs))
		for k := range result.Outputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s = %s\n", k, result.Outputs[k])
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	return nil
}
