package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cleanserverless/stackgen/internal/linter"
)

// newWatchCmd creates the "watch" subcommand for rebuilding on parameter changes.
func newWatchCmd(root *rootOptions) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild when the env file changes",
		Long: `Watch monitors the env file and rebuilds the template when it changes.

The watch command:
- Monitors the directory holding the env file
- Lints the rebuilt deployment graph on each change
- Writes the template if lint reports no errors (unless --lint-only)
- Debounces rapid changes to avoid excessive rebuilds

Examples:
    stackgen watch -o template.json
    stackgen watch --lint-only
    stackgen watch --debounce 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, root, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.lintOnly, "lint-only", false, "Only run lint, skip build")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")
	cmd.Flags().StringVarP(&opts.outputFormat, "format", "f", "json", "Output format for build: json or yaml")
	cmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "Output file for build (default: stdout)")

	return cmd
}

type watchOptions struct {
	lintOnly     bool
	debounce     time.Duration
	outputFormat string
	outputFile   string
}

// runWatch rebuilds once, then on every change to the env file until ctx is done.
func runWatch(ctx context.Context, root *rootOptions, opts watchOptions, w io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	envPath, err := filepath.Abs(root.envFile)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", root.envFile, err)
	}

	// Editors often replace the file, so watch its directory.
	dir := filepath.Dir(envPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.WithField("file", envPath).Info("watching env file")

	rebuild(root, opts, w)

	var debounceTimer *time.Timer
	rebuildChan := make(chan struct{}, 1)
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isEnvFileChange(event, envPath) {
				continue
			}

			// Debounce: reset timer on each change
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(opts.debounce, func() {
				select {
				case rebuildChan <- struct{}{}:
				default:
				}
			})

		case <-rebuildChan:
			log.Info("change detected, rebuilding")
			rebuild(root, opts, w)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watch error")

		case <-ctx.Done():
			log.Info("stopping watch")
			return nil
		}
	}
}

func isEnvFileChange(event fsnotify.Event, envPath string) bool {
	if filepath.Clean(event.Name) != envPath {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

// rebuild reloads the parameter bag, lints the graph and writes the template.
// Failures are logged; watching continues.
func rebuild(root *rootOptions, opts watchOptions, w io.Writer) bool {
	cfg, g, err := loadGraph(root)
	if err != nil {
		log.WithError(err).Error("reload failed")
		return false
	}

	result := linter.Lint(g, linter.Options{})
	for _, issue := range result.Issues {
		log.WithFields(log.Fields{
			"rule":     issue.Rule,
			"resource": issue.Resource,
			"severity": issue.Severity,
		}).Warn(issue.Message)
	}
	if !result.Success {
		log.Error("lint failed, skipping build")
		return false
	}
	if opts.lintOnly {
		log.Info("lint passed")
		return true
	}

	tmpl, err := render(cfg, g)
	if err != nil {
		log.WithError(err).Error("build failed")
		return false
	}
	if err := writeTemplate(w, tmpl, opts.outputFormat, opts.outputFile); err != nil {
		log.WithError(err).Error("output failed")
		return false
	}
	return true
}
