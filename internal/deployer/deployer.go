// Package deployer submits a rendered template to CloudFormation and waits
// for the stack to settle.
package deployer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"

	stackgen "github.com/cleanserverless/stackgen"
	"github.com/cleanserverless/stackgen/internal/config"
)

// maxInlineBody is the largest template CloudFormation accepts inline.
const maxInlineBody = 51200

var (
	// ErrInProgress is returned while the stack is still changing.
	ErrInProgress = errors.New("stack operation in progress")
	// ErrTemplateTooLarge is returned when an inline body exceeds the limit
	// and no template bucket is configured.
	ErrTemplateTooLarge = errors.New("template exceeds 51200 bytes; set TEMPLATE_BUCKET")
)

// CloudFormationAPI is the subset of the CloudFormation client used here.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
}

// S3API is the subset of the S3 client used for template uploads.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Action is what Deploy did to the stack.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionNone   Action = "none"
)

// Options configures a Deployer.
type Options struct {
	StackName string
	Region    string
	// TemplateBucket, when set, receives the template body before submission.
	TemplateBucket string
	// Parameters are passed as stack parameters; empty values are skipped so
	// template defaults apply.
	Parameters   map[string]string
	PollInterval time.Duration
	MaxAttempts  uint
}

// Result describes a finished deployment.
type Result struct {
	StackName string            `json:"stack_name"`
	Action    Action            `json:"action"`
	Status    string            `json:"status"`
	Outputs   map[string]string `json:"outputs,omitempty"`
}

// Deployer creates or updates one stack.
type Deployer struct {
	cfn  CloudFormationAPI
	s3   S3API
	opts Options
}

// New returns a Deployer. s3Client may be nil when no template bucket is used.
func New(cfn CloudFormationAPI, s3Client S3API, opts Options) *Deployer {
	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 180
	}
	return &Deployer{cfn: cfn, s3: s3Client, opts: opts}
}

// NewFromConfig builds clients from the default credential chain. The stack
// name, region and template bucket of opts are taken from cfg.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts Options) (*Deployer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	opts.StackName = cfg.StackName
	opts.Region = cfg.Region
	opts.TemplateBucket = cfg.TemplateBucket

	return New(cloudformation.NewFromConfig(awsCfg), s3.NewFromConfig(awsCfg), opts), nil
}

// Deploy submits t and waits for a terminal stack status.
func (d *Deployer) Deploy(ctx context.Context, t *stackgen.Template) (*Result, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("serializing template: %w", err)
	}

	var templateURL string
	if d.opts.TemplateBucket != "" {
		templateURL, err = d.upload(ctx, body)
		if err != nil {
			return nil, err
		}
	} else if len(body) > maxInlineBody {
		return nil, ErrTemplateTooLarge
	}

	logger := log.WithField("stack", d.opts.StackName)

	stack, err := d.describe(ctx)
	if err != nil {
		return nil, err
	}

	action := ActionCreate
	if stack != nil {
		if stack.StackStatus == cfntypes.StackStatusRollbackComplete {
			return nil, fmt.Errorf("stack %s is in %s; delete it before deploying", d.opts.StackName, stack.StackStatus)
		}
		action = ActionUpdate
	}

	logger.WithField("action", action).Info("submitting stack")
	switch action {
	case ActionCreate:
		_, err = d.cfn.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    aws.String(d.opts.StackName),
			TemplateBody: inline(body, templateURL),
			TemplateURL:  optional(templateURL),
			Parameters:   d.parameters(),
			Capabilities: capabilities(),
		})
	case ActionUpdate:
		_, err = d.cfn.UpdateStack(ctx, &cloudformation.UpdateStackInput{
			StackName:    aws.String(d.opts.StackName),
			TemplateBody: inline(body, templateURL),
			TemplateURL:  optional(templateURL),
			Parameters:   d.parameters(),
			Capabilities: capabilities(),
		})
		if isNoUpdates(err) {
			logger.Info("stack is up to date")
			return &Result{
				StackName: d.opts.StackName,
				Action:    ActionNone,
				Status:    string(stack.StackStatus),
				Outputs:   outputs(stack),
			}, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s stack %s: %w", action, d.opts.StackName, err)
	}

	final, err := d.wait(ctx)
	if err != nil {
		return nil, err
	}

	logger.WithField("status", final.StackStatus).Info("stack settled")
	return &Result{
		StackName: d.opts.StackName,
		Action:    action,
		Status:    string(final.StackStatus),
		Outputs:   outputs(final),
	}, nil
}

// describe returns the stack, or nil when it does not exist.
func (d *Deployer) describe(ctx context.Context) (*cfntypes.Stack, error) {
	out, err := d.cfn.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(d.opts.StackName),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("describe stack %s: %w", d.opts.StackName, err)
	}
	if len(out.Stacks) == 0 {
		return nil, nil
	}
	return &out.Stacks[0], nil
}

// wait polls until the stack reaches a terminal status.
func (d *Deployer) wait(ctx context.Context) (*cfntypes.Stack, error) {
	var final *cfntypes.Stack

	err := retry.Do(
		func() error {
			stack, err := d.describe(ctx)
			if err != nil {
				return err
			}
			if stack == nil {
				return fmt.Errorf("stack %s disappeared", d.opts.StackName)
			}
			status := string(stack.StackStatus)
			switch {
			case strings.HasSuffix(status, "_IN_PROGRESS"):
				log.WithField("status", status).Debug("waiting for stack")
				return ErrInProgress
			case status == string(cfntypes.StackStatusCreateComplete), status == string(cfntypes.StackStatusUpdateComplete):
				final = stack
				return nil
			default:
				return fmt.Errorf("stack %s failed with %s: %s", d.opts.StackName, status, aws.ToString(stack.StackStatusReason))
			}
		},
		retry.Context(ctx),
		retry.Attempts(d.opts.MaxAttempts),
		retry.Delay(d.opts.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrInProgress)
		}),
	)
	if err != nil {
		if errors.Is(err, ErrInProgress) {
			return nil, fmt.Errorf("timed out waiting for stack %s: %w", d.opts.StackName, err)
		}
		return nil, err
	}
	return final, nil
}

// upload stores the body under a content-addressed key and returns its URL.
func (d *Deployer) upload(ctx context.Context, body []byte) (string, error) {
	if d.s3 == nil {
		return "", errors.New("template bucket configured without an s3 client")
	}

	sum := sha256.Sum256(body)
	key := fmt.Sprintf("%s/template-%s.json", d.opts.StackName, hex.EncodeToString(sum[:8]))

	_, err := d.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.opts.TemplateBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload template to s3://%s/%s: %w", d.opts.TemplateBucket, key, err)
	}

	log.WithFields(log.Fields{"bucket": d.opts.TemplateBucket, "key": key}).Info("uploaded template")
	return TemplateURL(d.opts.TemplateBucket, d.opts.Region, key), nil
}

// TemplateURL returns the virtual-hosted URL of an uploaded template.
func TemplateURL(bucket, region, key string) string {
	if region == "" || region == "us-east-1" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

func (d *Deployer) parameters() []cfntypes.Parameter {
	keys := make([]string, 0, len(d.opts.Parameters))
	for k, v := range d.opts.Parameters {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var params []cfntypes.Parameter
	for _, k := range keys {
		params = append(params, cfntypes.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(d.opts.Parameters[k]),
		})
	}
	return params
}

func capabilities() []cfntypes.Capability {
	return []cfntypes.Capability{cfntypes.CapabilityCapabilityIam, cfntypes.CapabilityCapabilityNamedIam}
}

func inline(body []byte, templateURL string) *string {
	if templateURL != "" {
		return nil
	}
	return aws.String(string(body))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func outputs(stack *cfntypes.Stack) map[string]string {
	if stack == nil || len(stack.Outputs) == 0 {
		return nil
	}
	out := make(map[string]string, len(stack.Outputs))
	for _, o := range stack.Outputs {
		out[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return out
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) &&
		apiErr.ErrorCode() == "ValidationError" &&
		strings.Contains(apiErr.ErrorMessage(), "does not exist")
}

func isNoUpdates(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) &&
		apiErr.ErrorCode() == "ValidationError" &&
		strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed")
}
