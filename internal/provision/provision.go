// Package provision creates the stateful resources of the deployment graph
// (the table and the bucket) against local DynamoDB and S3-compatible
// endpoints, for development without the provisioning engine.
package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"

	"github.com/cleanserverless/stackgen/internal/config"
	"github.com/cleanserverless/stackgen/internal/stack"
)

// ErrNoTableName is returned when the table has no display name; a local
// table cannot be created under a generated name.
var ErrNoTableName = errors.New("table name is empty; set DYNAMO_TABLE_NAME")

// DynamoDBAPI is the subset of the DynamoDB client used here.
type DynamoDBAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// S3API is the subset of the S3 client used here.
type S3API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Outcome describes what happened to one resource.
type Outcome string

const (
	Created Outcome = "created"
	Existed Outcome = "exists"
)

// Report lists the outcome per resource.
type Report struct {
	Table  Outcome `json:"table"`
	Bucket Outcome `json:"bucket"`
}

// Provisioner creates the table and the bucket. Both operations are
// idempotent: an existing resource is reported, not an error.
type Provisioner struct {
	dynamo DynamoDBAPI
	s3     S3API
	region string
}

// New returns a Provisioner using the given clients.
func New(dynamo DynamoDBAPI, s3Client S3API, region string) *Provisioner {
	return &Provisioner{dynamo: dynamo, s3: s3Client, region: region}
}

// NewFromConfig builds clients for the configured local endpoints.
func NewFromConfig(ctx context.Context, cfg *config.Config, factory ClientFactory) (*Provisioner, error) {
	if factory == nil {
		factory = AWSClientFactory{}
	}
	dynamo, err := factory.DynamoDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("dynamodb client: %w", err)
	}
	s3Client, err := factory.S3(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return New(dynamo, s3Client, cfg.Region), nil
}

// Provision creates the table and the bucket of g.
func (p *Provisioner) Provision(ctx context.Context, g *stack.Graph) (*Report, error) {
	table, err := p.EnsureTable(ctx, g.Table)
	if err != nil {
		return nil, err
	}
	bucket, err := p.EnsureBucket(ctx, g.Bucket)
	if err != nil {
		return nil, err
	}
	return &Report{Table: table, Bucket: bucket}, nil
}

// EnsureTable creates the table described by t unless it exists.
func (p *Provisioner) EnsureTable(ctx context.Context, t stack.TableSpec) (Outcome, error) {
	if t.TableName == "" {
		return "", ErrNoTableName
	}

	_, err := p.dynamo.CreateTable(ctx, TableInput(t))
	if err != nil {
		var inUse *dynamotypes.ResourceInUseException
		if errors.As(err, &inUse) {
			log.WithField("table", t.TableName).Info("table already exists")
			return Existed, nil
		}
		return "", fmt.Errorf("create table %s: %w", t.TableName, err)
	}

	log.WithField("table", t.TableName).Info("created table")
	return Created, nil
}

// TableInput converts a table descriptor to a CreateTable request.
func TableInput(t stack.TableSpec) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(t.TableName),
		AttributeDefinitions: []dynamotypes.AttributeDefinition{
			{AttributeName: aws.String(t.PartitionKeyName), AttributeType: dynamotypes.ScalarAttributeType(t.PartitionKeyType)},
			{AttributeName: aws.String(t.SortKeyName), AttributeType: dynamotypes.ScalarAttributeType(t.SortKeyType)},
		},
		KeySchema: []dynamotypes.KeySchemaElement{
			{AttributeName: aws.String(t.PartitionKeyName), KeyType: dynamotypes.KeyTypeHash},
			{AttributeName: aws.String(t.SortKeyName), KeyType: dynamotypes.KeyTypeRange},
		},
		BillingMode: dynamotypes.BillingMode(t.CapacityMode),
	}
}

// EnsureBucket creates the bucket described by b unless it exists.
func (p *Provisioner) EnsureBucket(ctx context.Context, b stack.BucketSpec) (Outcome, error) {
	_, err := p.s3.CreateBucket(ctx, BucketInput(b, p.region))
	if err != nil {
		if bucketExists(err) {
			log.WithField("bucket", b.BucketName).Info("bucket already exists")
			return Existed, nil
		}
		return "", fmt.Errorf("create bucket %s: %w", b.BucketName, err)
	}

	log.WithField("bucket", b.BucketName).Info("created bucket")
	return Created, nil
}

// BucketInput converts a bucket descriptor to a CreateBucket request.
// us-east-1 takes no location constraint.
func BucketInput(b stack.BucketSpec, region string) *s3.CreateBucketInput {
	input := &s3.CreateBucketInput{Bucket: aws.String(b.BucketName)}
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}
	return input
}

func bucketExists(err error) bool {
	var owned *s3types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return true
	}
	var exists *s3types.BucketAlreadyExists
	if errors.As(err, &exists) {
		return true
	}
	// S3-compatible stores do not always return the modeled types.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			return true
		}
	}
	return false
}
