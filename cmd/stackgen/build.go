package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	stackgen "github.com/cleanserverless/stackgen"
	"github.com/cleanserverless/stackgen/internal/config"
	"github.com/cleanserverless/stackgen/internal/stack"
	"github.com/cleanserverless/stackgen/internal/synth"
	"github.com/cleanserverless/stackgen/internal/template"
)

func newBuildCmd(root *rootOptions) *cobra.Command {
	var (
		outputFormat string
		outputFile   string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate CloudFormation template from the parameter bag",
		Long: `Build reads the parameter bag, builds the deployment graph and renders it
as a CloudFormation template.

Examples:
    stackgen build
    stackgen build -o template.json
    stackgen build --format yaml --env-file .env.prod`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, g, err := loadGraph(root)
			if err != nil {
				return err
			}
			tmpl, err := render(cfg, g)
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}
			return writeTemplate(cmd.OutOrStdout(), tmpl, outputFormat, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// loadGraph reads the configuration and builds the deployment graph.
func loadGraph(root *rootOptions) (*config.Config, *stack.Graph, error) {
	cfg, err := config.Load(config.Options{EnvFile: root.envFile})
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	log.WithFields(log.Fields{
		"env_file": root.envFile,
		"table":    cfg.Params.TableName,
	}).Debug("loaded parameter bag")

	return cfg, stack.Build(cfg.Params), nil
}

// render synthesizes the template of g.
func render(cfg *config.Config, g *stack.Graph) (*stackgen.Template, error) {
	tmpl, err := synth.Synthesize(g, synth.Options{
		Description: cfg.StackDescription,
		ImageURIs:   cfg.ImageURIs,
	})
	if err != nil {
		return nil, err
	}
	log.WithField("resources", len(tmpl.Resources)).Debug("rendered template")
	return tmpl, nil
}

// imageParameters maps each image parameter of g to its configured URI.
func imageParameters(cfg *config.Config, g *stack.Graph) map[string]string {
	params := make(map[string]string)
	for _, target := range g.Targets() {
		params[synth.ImageParameter(target)] = cfg.ImageURI(target)
	}
	return params
}

func resourceNames(t *stackgen.Template) []string {
	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func encodeTemplate(t *stackgen.Template, format string) ([]byte, error) {
	switch format {
	case "json":
		return template.ToJSON(t)
	case "yaml":
		return template.ToYAML(t)
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

func writeTemplate(w io.Writer, t *stackgen.Template, format, outputFile string) error {
	data, err := encodeTemplate(t, format)
	if err != nil {
		return err
	}

	if outputFile == "" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outputFile, err)
	}
	log.WithFields(log.Fields{
		"file":      outputFile,
		"resources": len(t.Resources),
	}).Info("wrote template")
	return nil
}
