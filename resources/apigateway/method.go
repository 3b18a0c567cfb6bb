package apigateway

// Method represents AWS::ApiGateway::Method.
type Method struct {
	RestApiId         any                 `json:"RestApiId,omitempty"`
	ResourceId        any                 `json:"ResourceId,omitempty"`
	HttpMethod        any                 `json:"HttpMethod,omitempty"`
	AuthorizationType any                 `json:"AuthorizationType,omitempty"`
	Integration       *Method_Integration `json:"Integration,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (r Method) ResourceType() string {
	return "AWS::ApiGateway::Method"
}

// Method_Integration represents AWS::ApiGateway::Method.Integration.
type Method_Integration struct {
	Type_                 any `json:"Type,omitempty"`
	IntegrationHttpMethod any `json:"IntegrationHttpMethod,omitempty"`
	Uri                   any `json:"Uri,omitempty"`
}

// Integration types.
const (
	IntegrationTypeAWSProxy = "AWS_PROXY"
)
