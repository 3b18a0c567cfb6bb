// Package apigateway provides CloudFormation resource types for AWS::ApiGateway.
package apigateway

// RestApi represents AWS::ApiGateway::RestApi.
type RestApi struct {
	Name any `json:"Name,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (r RestApi) ResourceType() string {
	return "AWS::ApiGateway::RestApi"
}

// Resource represents AWS::ApiGateway::Resource.
type Resource struct {
	RestApiId any `json:"RestApiId,omitempty"`
	ParentId  any `json:"ParentId,omitempty"`
	PathPart  any `json:"PathPart,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (r Resource) ResourceType() string {
	return "AWS::ApiGateway::Resource"
}

// Deployment represents AWS::ApiGateway::Deployment.
type Deployment struct {
	RestApiId   any `json:"RestApiId,omitempty"`
	Description any `json:"Description,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (r Deployment) ResourceType() string {
	return "AWS::ApiGateway::Deployment"
}

// Stage represents AWS::ApiGateway::Stage.
type Stage struct {
	RestApiId    any `json:"RestApiId,omitempty"`
	DeploymentId any `json:"DeploymentId,omitempty"`
	StageName    any `json:"StageName,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (r Stage) ResourceType() string {
	return "AWS::ApiGateway::Stage"
}
