// Package synth renders a deployment graph as a CloudFormation template.
//
// Logical IDs are derived from the graph: functions become <Name>Function and
// <Name>ServiceRole, API resources are "Api" followed by the PascalCased path
// segments and methods append the HTTP verb to their resource ID.
package synth

import (
	"fmt"
	"regexp"
	"strings"

	stackgen "github.com/cleanserverless/stackgen"
	"github.com/cleanserverless/stackgen/internal/serialize"
	"github.com/cleanserverless/stackgen/internal/stack"
	"github.com/cleanserverless/stackgen/internal/template"
	"github.com/cleanserverless/stackgen/intrinsics"
	"github.com/cleanserverless/stackgen/resources/apigateway"
	"github.com/cleanserverless/stackgen/resources/dynamodb"
	"github.com/cleanserverless/stackgen/resources/iam"
	"github.com/cleanserverless/stackgen/resources/lambda"
	"github.com/cleanserverless/stackgen/resources/s3"
)

const (
	lambdaBasicExecutionPolicy = ":iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"

	deploymentID = "ApiDeployment"
	stageID      = "ApiStage"
)

var placeholder = regexp.MustCompile(`\{[^}]*\}`)

// Options configures Synthesize.
type Options struct {
	Description string
	// ImageURIs maps a runtime target to the default of its image parameter.
	ImageURIs map[string]string
}

// FunctionID returns the logical ID of a function.
func FunctionID(name string) string {
	return serialize.LogicalID(name, "Function")
}

// RoleID returns the logical ID of a function's execution role.
func RoleID(name string) string {
	return serialize.LogicalID(name, "ServiceRole")
}

// ImageParameter returns the template parameter holding a target's image URI.
func ImageParameter(target string) string {
	return serialize.LogicalID(target, "ImageUri")
}

// ResourceID returns the logical ID of the API resource for a path. The root
// path has no resource of its own and yields "".
func ResourceID(path string) string {
	segments := splitPath(path)
	if len(segments) == 0 {
		return ""
	}
	return serialize.LogicalID(append([]string{"Api"}, segments...)...)
}

// MethodID returns the logical ID of the method for a route.
func MethodID(method, path string) string {
	res := ResourceID(path)
	if res == "" {
		res = "ApiRoot"
	}
	return serialize.LogicalID(res, strings.ToLower(method))
}

func splitPath(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Synthesize renders the graph. The graph itself is never rejected; errors
// come from references that do not resolve and from template assembly.
func Synthesize(g *stack.Graph, opts Options) (*stackgen.Template, error) {
	s := &synthesizer{g: g, b: template.NewBuilder(opts.Description)}

	s.table()
	for _, target := range g.Targets() {
		p := stackgen.Parameter{
			Type:        "String",
			Description: fmt.Sprintf("Image URI of the %s entry point", target),
		}
		if uri := opts.ImageURIs[target]; uri != "" {
			p.Default = uri
		}
		s.b.AddParameter(ImageParameter(target), p)
	}
	for _, fn := range g.Functions {
		if err := s.function(fn); err != nil {
			return nil, err
		}
	}
	permissions, err := s.subscriptionPermissions()
	if err != nil {
		return nil, err
	}
	if err := s.bucket(permissions); err != nil {
		return nil, err
	}
	if err := s.api(); err != nil {
		return nil, err
	}
	s.outputs()

	return s.b.Build()
}

type synthesizer struct {
	g *stack.Graph
	b *template.Builder
}

func (s *synthesizer) table() {
	t := s.g.Table
	table := &dynamodb.Table{
		AttributeDefinitions: []dynamodb.Table_AttributeDefinition{
			{AttributeName: t.PartitionKeyName, AttributeType: string(t.PartitionKeyType)},
			{AttributeName: t.SortKeyName, AttributeType: string(t.SortKeyType)},
		},
		KeySchema: []dynamodb.Table_KeySchema{
			{AttributeName: t.PartitionKeyName, KeyType: dynamodb.KeyTypeHash},
			{AttributeName: t.SortKeyName, KeyType: dynamodb.KeyTypeRange},
		},
		BillingMode: string(t.CapacityMode),
	}
	// An empty name is left to the provisioning engine to generate.
	if t.TableName != "" {
		table.TableName = t.TableName
	}
	s.b.Add(t.LogicalName, table, template.DeletionPolicy(string(t.Teardown)))
}

// bucketArn is built from the fixed bucket name rather than a GetAtt so that
// role policies do not depend on the bucket, which depends on the functions.
func (s *synthesizer) bucketArn(suffix string) intrinsics.Sub {
	return intrinsics.Sub{String: "arn:${AWS::Partition}:s3:::" + s.g.Bucket.BucketName + suffix}
}

func (s *synthesizer) grantResources(resource string) ([]any, error) {
	switch resource {
	case stack.Wildcard:
		return []any{"*"}, nil
	case s.g.Table.LogicalName:
		return []any{
			intrinsics.ArnOf(resource),
			intrinsics.Concat(intrinsics.ArnOf(resource), "/index/*"),
		}, nil
	case s.g.Bucket.LogicalName:
		return []any{s.bucketArn(""), s.bucketArn("/*")}, nil
	}
	return nil, fmt.Errorf("grant on unknown resource %q", resource)
}

func (s *synthesizer) function(fn stack.FunctionSpec) error {
	var statements []any
	for _, res := range s.g.GrantedResources(fn.LogicalName) {
		arns, err := s.grantResources(res)
		if err != nil {
			return fmt.Errorf("function %s: %w", fn.LogicalName, err)
		}
		statements = append(statements, intrinsics.Allow(s.g.EffectiveActions(fn.LogicalName, res), arns))
	}

	role := &iam.Role{
		AssumeRolePolicyDocument: intrinsics.NewPolicyDocument(intrinsics.PolicyStatement{
			Effect:    "Allow",
			Principal: intrinsics.ServicePrincipal{"lambda.amazonaws.com"},
			Action:    "sts:AssumeRole",
		}),
		ManagedPolicyArns: []any{
			intrinsics.Concat("arn:", intrinsics.AWS_PARTITION, lambdaBasicExecutionPolicy),
		},
	}
	if len(statements) > 0 {
		role.Policies = []any{iam.Role_Policy{
			PolicyName:     RoleID(fn.LogicalName) + "Policy",
			PolicyDocument: intrinsics.NewPolicyDocument(statements...),
		}}
	}
	s.b.Add(RoleID(fn.LogicalName), role)

	archs := []any{string(fn.Architecture)}
	s.b.Add(FunctionID(fn.LogicalName), &lambda.Function{
		FunctionName:  fn.FunctionName,
		PackageType:   lambda.PackageTypeImage,
		Code:          lambda.Function_Code{ImageUri: intrinsics.Param(ImageParameter(fn.Target))},
		Architectures: archs,
		Role:          intrinsics.ArnOf(RoleID(fn.LogicalName)),
		Timeout:       fn.TimeoutSeconds,
		MemorySize:    fn.MemoryMB,
		Environment:   &lambda.Function_Environment{Variables: fn.Environment},
	})
	return nil
}

// subscriptionPermissions adds one invoke permission per subscribed function
// and returns their logical IDs.
func (s *synthesizer) subscriptionPermissions() ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, sub := range s.g.Subscriptions {
		if seen[sub.Function] {
			continue
		}
		seen[sub.Function] = true
		if _, ok := s.g.Function(sub.Function); !ok {
			return nil, fmt.Errorf("subscription %s targets unknown function %s", sub.Kind, sub.Function)
		}

		id := serialize.LogicalID(sub.Function, "BucketInvokePermission")
		s.b.Add(id, &lambda.Permission{
			Action:        lambda.ActionInvokeFunction,
			FunctionName:  intrinsics.ArnOf(FunctionID(sub.Function)),
			Principal:     "s3.amazonaws.com",
			SourceAccount: intrinsics.AWS_ACCOUNT_ID,
			SourceArn:     s.bucketArn(""),
		})
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *synthesizer) bucket(permissions []string) error {
	b := s.g.Bucket
	bucket := &s3.Bucket{BucketName: b.BucketName}

	var configs []s3.Bucket_LambdaConfiguration
	for _, sub := range s.g.Subscriptions {
		if sub.Bucket != b.LogicalName {
			return fmt.Errorf("subscription %s on unknown bucket %s", sub.Kind, sub.Bucket)
		}
		configs = append(configs, s3.Bucket_LambdaConfiguration{
			Event:    string(sub.Kind),
			Function: intrinsics.ArnOf(FunctionID(sub.Function)),
		})
	}
	if len(configs) > 0 {
		bucket.NotificationConfiguration = &s3.Bucket_NotificationConfiguration{LambdaConfigurations: configs}
	}

	opts := []template.Option{template.DeletionPolicy(string(b.Teardown))}
	if len(permissions) > 0 {
		opts = append(opts, template.DependsOn(permissions...))
	}
	s.b.Add(b.LogicalName, bucket, opts...)
	return nil
}

func (s *synthesizer) api() error {
	api := s.g.API
	apiRef := intrinsics.RefTo(api.LogicalName)
	s.b.Add(api.LogicalName, &apigateway.RestApi{Name: api.Name})

	resources := make(map[string]bool)
	var methods []string

	for _, r := range s.g.Routes {
		if _, ok := s.g.Function(r.Function); !ok {
			return fmt.Errorf("route %s %s bound to unknown function %s", r.Method, r.Path, r.Function)
		}

		parent := any(intrinsics.GetAtt{LogicalName: api.LogicalName, Attribute: "RootResourceId"})
		segments := splitPath(r.Path)
		for i, seg := range segments {
			id := ResourceID(strings.Join(segments[:i+1], "/"))
			if !resources[id] {
				resources[id] = true
				s.b.Add(id, &apigateway.Resource{
					RestApiId: apiRef,
					ParentId:  parent,
					PathPart:  seg,
				})
			}
			parent = intrinsics.RefTo(id)
		}

		fnArn := intrinsics.ArnOf(FunctionID(r.Function))
		methodID := MethodID(r.Method, r.Path)
		s.b.Add(methodID, &apigateway.Method{
			RestApiId:         apiRef,
			ResourceId:        parent,
			HttpMethod:        r.Method,
			AuthorizationType: "NONE",
			Integration: &apigateway.Method_Integration{
				Type_:                 apigateway.IntegrationTypeAWSProxy,
				IntegrationHttpMethod: "POST",
				Uri: intrinsics.Concat(
					"arn:", intrinsics.AWS_PARTITION, ":apigateway:", intrinsics.AWS_REGION,
					":lambda:path/2015-03-31/functions/", fnArn, "/invocations",
				),
			},
		})
		methods = append(methods, methodID)

		s.b.Add(methodID+"Permission", &lambda.Permission{
			Action:       lambda.ActionInvokeFunction,
			FunctionName: fnArn,
			Principal:    "apigateway.amazonaws.com",
			SourceArn: intrinsics.Concat(
				"arn:", intrinsics.AWS_PARTITION, ":execute-api:", intrinsics.AWS_REGION, ":",
				intrinsics.AWS_ACCOUNT_ID, ":", apiRef, "/", api.StageName, "/", r.Method,
				placeholder.ReplaceAllString(r.Path, "*"),
			),
		})
	}

	if len(methods) == 0 {
		return nil
	}

	s.b.Add(deploymentID, &apigateway.Deployment{
		RestApiId:   apiRef,
		Description: "Deployment of " + api.Name,
	}, template.DependsOn(methods...))
	s.b.Add(stageID, &apigateway.Stage{
		RestApiId:    apiRef,
		DeploymentId: intrinsics.RefTo(deploymentID),
		StageName:    api.StageName,
	})
	return nil
}

func (s *synthesizer) outputs() {
	if len(s.g.Routes) > 0 {
		s.b.AddOutput("ApiEndpoint", stackgen.Output{
			Description: "Invoke URL of the " + s.g.API.StageName + " stage",
			Value: intrinsics.Concat(
				"https://", intrinsics.RefTo(s.g.API.LogicalName), ".execute-api.", intrinsics.AWS_REGION,
				".", intrinsics.AWS_URL_SUFFIX, "/", s.g.API.StageName, "/",
			),
		})
	}
	s.b.AddOutput("TableName", stackgen.Output{Value: intrinsics.RefTo(s.g.Table.LogicalName)})
	s.b.AddOutput("BucketName", stackgen.Output{Value: intrinsics.RefTo(s.g.Bucket.LogicalName)})
}
