package deployer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stackgen "github.com/cleanserverless/stackgen"
)

type fakeCFN struct {
	statuses  []cfntypes.StackStatus
	missing   bool
	updateErr error
	describes int

	created *cloudformation.CreateStackInput
	updated *cloudformation.UpdateStackInput
}

func (f *fakeCFN) DescribeStacks(_ context.Context, in *cloudformation.DescribeStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	if f.missing && f.created == nil {
		return nil, &smithy.GenericAPIError{Code: "ValidationError", Message: "Stack with id " + aws.ToString(in.StackName) + " does not exist"}
	}
	i := f.describes
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.describes++
	return &cloudformation.DescribeStacksOutput{Stacks: []cfntypes.Stack{{
		StackName:   in.StackName,
		StackStatus: f.statuses[i],
		Outputs: []cfntypes.Output{
			{OutputKey: aws.String("ApiEndpoint"), OutputValue: aws.String("https://abc.execute-api.us-east-1.amazonaws.com/v1")},
		},
	}}}, nil
}

func (f *fakeCFN) CreateStack(_ context.Context, in *cloudformation.CreateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	f.created = in
	return &cloudformation.CreateStackOutput{StackId: aws.String("stack-id")}, nil
}

func (f *fakeCFN) UpdateStack(_ context.Context, in *cloudformation.UpdateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	f.updated = in
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &cloudformation.UpdateStackOutput{StackId: aws.String("stack-id")}, nil
}

type fakeS3 struct {
	bucket string
	key    string
	body   string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

func testTemplate() *stackgen.Template {
	return &stackgen.Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Resources: map[string]stackgen.ResourceDef{
			"ResourceTable": {Type: "AWS::DynamoDB::Table"},
		},
	}
}

func testOptions() Options {
	return Options{
		StackName:    "micropost",
		Region:       "us-east-1",
		Parameters:   map[string]string{"ApiImageUri": "repo:api", "S3eventImageUri": ""},
		PollInterval: time.Millisecond,
		MaxAttempts:  5,
	}
}

func TestDeploy_CreatesMissingStack(t *testing.T) {
	cfn := &fakeCFN{
		missing:  true,
		statuses: []cfntypes.StackStatus{cfntypes.StackStatusCreateInProgress, cfntypes.StackStatusCreateComplete},
	}

	result, err := New(cfn, nil, testOptions()).Deploy(context.Background(), testTemplate())
	require.NoError(t, err)

	assert.Equal(t, ActionCreate, result.Action)
	assert.Equal(t, "CREATE_COMPLETE", result.Status)
	assert.Equal(t, "https://abc.execute-api.us-east-1.amazonaws.com/v1", result.Outputs["ApiEndpoint"])

	require.NotNil(t, cfn.created)
	assert.Contains(t, aws.ToString(cfn.created.TemplateBody), "ResourceTable")
	assert.Nil(t, cfn.created.TemplateURL)
	assert.ElementsMatch(t,
		[]cfntypes.Capability{cfntypes.CapabilityCapabilityIam, cfntypes.CapabilityCapabilityNamedIam},
		cfn.created.Capabilities)

	// empty parameter values are skipped
	require.Len(t, cfn.created.Parameters, 1)
	assert.Equal(t, "ApiImageUri", aws.ToString(cfn.created.Parameters[0].ParameterKey))
	assert.Equal(t, "repo:api", aws.ToString(cfn.created.Parameters[0].ParameterValue))
}

func TestDeploy_UpdatesExistingStack(t *testing.T) {
	cfn := &fakeCFN{
		statuses: []cfntypes.StackStatus{
			cfntypes.StackStatusCreateComplete,
			cfntypes.StackStatusUpdateInProgress,
			cfntypes.StackStatusUpdateCompleteCleanupInProgress,
			cfntypes.StackStatusUpdateComplete,
		},
	}

	result, err := New(cfn, nil, testOptions()).Deploy(context.Background(), testTemplate())
	require.NoError(t, err)

	assert.Equal(t, ActionUpdate, result.Action)
	assert.Equal(t, "UPDATE_COMPLETE", result.Status)
	assert.Nil(t, cfn.created)
	require.NotNil(t, cfn.updated)
}

func TestDeploy_NoUpdatesIsSuccess(t *testing.T) {
	cfn := &fakeCFN{
		statuses:  []cfntypes.StackStatus{cfntypes.StackStatusUpdateComplete},
		updateErr: &smithy.GenericAPIError{Code: "ValidationError", Message: "No updates are to be performed."},
	}

	result, err := New(cfn, nil, testOptions()).Deploy(context.Background(), testTemplate())
	require.NoError(t, err)

	assert.Equal(t, ActionNone, result.Action)
	assert.Equal(t, "UPDATE_COMPLETE", result.Status)
	assert.Equal(t, 1, cfn.describes)
}

func TestDeploy_UpdateError(t *testing.T) {
	cfn := &fakeCFN{
		statuses:  []cfntypes.StackStatus{cfntypes.StackStatusCreateComplete},
		updateErr: &smithy.GenericAPIError{Code: "ValidationError", Message: "Template format error"},
	}

	_, err := New(cfn, nil, testOptions()).Deploy(context.Background(), testTemplate())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Template format error")
}

func TestDeploy_RollbackFails(t *testing.T) {
	cfn := &fakeCFN{
		missing: true,
		statuses: []cfntypes.StackStatus{
			cfntypes.StackStatusCreateInProgress,
			cfntypes.StackStatusRollbackInProgress,
			cfntypes.StackStatusRollbackComplete,
		},
	}

	_, err := New(cfn, nil, testOptions()).Deploy(context.Background(), testTemplate())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROLLBACK_COMPLETE")
	assert.False(t, errors.Is(err, ErrInProgress))
}

func TestDeploy_RefusesRolledBackStack(t *testing.T) {
	cfn := &fakeCFN{statuses: []cfntypes.StackStatus{cfntypes.StackStatusRollbackComplete}}

	_, err := New(cfn, nil, testOptions()).Deploy(context.Background(), testTemplate())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete it")
	assert.Nil(t, cfn.updated)
}

func TestDeploy_TimesOut(t *testing.T) {
	cfn := &fakeCFN{
		missing:  true,
		statuses: []cfntypes.StackStatus{cfntypes.StackStatusCreateInProgress},
	}

	_, err := New(cfn, nil, testOptions()).Deploy(context.Background(), testTemplate())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInProgress))
	assert.Contains(t, err.Error(), "timed out")
}

func TestDeploy_UploadsToTemplateBucket(t *testing.T) {
	cfn := &fakeCFN{
		missing:  true,
		statuses: []cfntypes.StackStatus{cfntypes.StackStatusCreateComplete},
	}
	store := &fakeS3{}

	opts := testOptions()
	opts.TemplateBucket = "deploy-artifacts"
	opts.Region = "ap-northeast-1"

	_, err := New(cfn, store, opts).Deploy(context.Background(), testTemplate())
	require.NoError(t, err)

	assert.Equal(t, "deploy-artifacts", store.bucket)
	assert.Regexp(t, `^micropost/template-[0-9a-f]{16}\.json$`, store.key)
	assert.Contains(t, store.body, "AWS::DynamoDB::Table")

	require.NotNil(t, cfn.created)
	assert.Nil(t, cfn.created.TemplateBody)
	assert.Equal(t, "https://deploy-artifacts.s3.ap-northeast-1.amazonaws.com/"+store.key, aws.ToString(cfn.created.TemplateURL))
}

func TestDeploy_TemplateTooLarge(t *testing.T) {
	tmpl := testTemplate()
	tmpl.Description = string(make([]byte, maxInlineBody))

	_, err := New(&fakeCFN{missing: true}, nil, testOptions()).Deploy(context.Background(), tmpl)
	assert.ErrorIs(t, err, ErrTemplateTooLarge)
}

func TestTemplateURL(t *testing.T) {
	assert.Equal(t, "https://b.s3.amazonaws.com/k.json", TemplateURL("b", "us-east-1", "k.json"))
	assert.Equal(t, "https://b.s3.amazonaws.com/k.json", TemplateURL("b", "", "k.json"))
	assert.Equal(t, "https://b.s3.eu-west-1.amazonaws.com/k.json", TemplateURL("b", "eu-west-1", "k.json"))
}
