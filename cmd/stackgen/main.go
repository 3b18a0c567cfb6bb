// Command stackgen renders the micropost sample's deployment graph as a
// CloudFormation template.
//
// Usage:
//
//	stackgen build -o template.json    Generate CloudFormation template
//	stackgen lint                      Check the deployment graph
//	stackgen validate                  Run cfn-lint on the template
//	stackgen deploy                    Create or update the stack
//	stackgen version                   Show version
package main

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cleanserverless/stackgen/internal/config"
)

// errIssuesFound makes main exit with status 2.
var errIssuesFound = errors.New("issues found")

type rootOptions struct {
	envFile   string
	logLevel  string
	logFormat string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errIssuesFound) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "stackgen",
		Short: "Generate the micropost CloudFormation stack",
		Long: `stackgen builds the deployment graph of the micropost sample from its
parameter bag and renders it as a CloudFormation template.

The parameter bag is read from the environment and an optional dotenv file:

    DYNAMO_TABLE_NAME=microposts
    DYNAMO_PK_NAME=PK
    DYNAMO_SK_NAME=SK

Then generate CloudFormation JSON:

    stackgen build -o template.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(opts.logLevel, opts.logFormat)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "Dotenv file holding the parameter bag")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(
		newBuildCmd(opts),
		newGraphCmd(opts),
		newLintCmd(opts),
		newValidateCmd(opts),
		newDiffCmd(opts),
		newWatchCmd(opts),
		newProvisionCmd(opts),
		newDeployCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// setupLogging configures the global logger. Logs always go to stderr so
// they never mix with template output.
func setupLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	switch format {
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format: %s (use 'text' or 'json')", format)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stackgen %s\n", getVersion())
		},
	}
}
