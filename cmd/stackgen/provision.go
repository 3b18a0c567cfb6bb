package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cleanserverless/stackgen/internal/provision"
)

func newProvisionCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create the table and bucket on local endpoints",
		Long: `Provision creates the stateful resources of the deployment graph against
DynamoDB Local and an S3-compatible store, for development without a stack.

Existing resources are left untouched.

Endpoints and credentials:
    DYNAMODB_ENDPOINT   (default http://localhost:8000)
    S3_ENDPOINT         (default http://localhost:9000)
    LOCAL_ACCESS_KEY / LOCAL_SECRET_KEY

Examples:
    stackgen provision
    stackgen provision --env-file .env.local`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, g, err := loadGraph(root)
			if err != nil {
				return err
			}

			p, err := provision.NewFromConfig(cmd.Context(), cfg, provision.AWSClientFactory{})
			if err != nil {
				return err
			}

			report, err := p.Provision(cmd.Context(), g)
			if err != nil {
				return fmt.Errorf("provision failed: %w", err)
			}

			log.WithFields(log.Fields{
				"table":  report.Table,
				"bucket": report.Bucket,
			}).Info("provisioned local resources")
			fmt.Fprintf(cmd.OutOrStdout(), "table %s: %s\nbucket %s: %s\n",
				g.Table.TableName, report.Table, g.Bucket.BucketName, report.Bucket)
			return nil
		},
	}
}
