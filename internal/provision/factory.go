package provision

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cleanserverless/stackgen/internal/config"
)

// ErrNoEndpoint is returned when a local endpoint is not configured.
var ErrNoEndpoint = errors.New("endpoint is required")

// ClientFactory creates clients bound to local endpoints.
type ClientFactory interface {
	DynamoDB(ctx context.Context, cfg *config.Config) (DynamoDBAPI, error)
	S3(ctx context.Context, cfg *config.Config) (S3API, error)
}

// AWSClientFactory builds SDK clients with static credentials.
type AWSClientFactory struct{}

func (AWSClientFactory) DynamoDB(ctx context.Context, cfg *config.Config) (DynamoDBAPI, error) {
	awsCfg, err := loadAWSConfig(ctx, dynamodb.ServiceID, cfg.DynamoDBEndpoint, cfg)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

func (AWSClientFactory) S3(ctx context.Context, cfg *config.Config) (S3API, error) {
	awsCfg, err := loadAWSConfig(ctx, s3.ServiceID, cfg.S3Endpoint, cfg)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		options.UsePathStyle = true
	}), nil
}

func loadAWSConfig(ctx context.Context, serviceID, endpoint string, cfg *config.Config) (aws.Config, error) {
	if endpoint == "" {
		return aws.Config{}, ErrNoEndpoint
	}

	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, _ ...any) (aws.Endpoint, error) {
			if service != serviceID {
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			}
			return aws.Endpoint{
				URL:               endpoint,
				HostnameImmutable: true,
			}, nil
		},
	)

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	return awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
}
