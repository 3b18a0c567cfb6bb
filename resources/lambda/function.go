// Package lambda provides CloudFormation resource types for AWS::Lambda.
package lambda

// Function represents AWS::Lambda::Function.
type Function struct {
	FunctionName  any                   `json:"FunctionName,omitempty"`
	PackageType   any                   `json:"PackageType,omitempty"`
	Code          Function_Code         `json:"Code"`
	Architectures []any                 `json:"Architectures,omitempty"`
	Role          any                   `json:"Role,omitempty"`
	Timeout       int                   `json:"Timeout,omitempty"`
	MemorySize    int                   `json:"MemorySize,omitempty"`
	Environment   *Function_Environment `json:"Environment,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (r Function) ResourceType() string {
	return "AWS::Lambda::Function"
}

// Function_Code represents AWS::Lambda::Function.Code.
type Function_Code struct {
	ImageUri any `json:"ImageUri,omitempty"`
}

// Function_Environment represents AWS::Lambda::Function.Environment.
//
// Variables is a map of strings so that empty values are kept; an empty
// string is a legitimate environment value.
type Function_Environment struct {
	Variables map[string]string `json:"Variables"`
}

// PackageTypeImage deploys the function from a container image.
const PackageTypeImage = "Image"
