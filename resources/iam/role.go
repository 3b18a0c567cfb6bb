// Package iam provides CloudFormation resource types for AWS::IAM.
package iam

// Role represents AWS::IAM::Role.
type Role struct {
	AssumeRolePolicyDocument any   `json:"AssumeRolePolicyDocument,omitempty"`
	ManagedPolicyArns        []any `json:"ManagedPolicyArns,omitempty"`
	Policies                 []any `json:"Policies,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (r Role) ResourceType() string {
	return "AWS::IAM::Role"
}

// Role_Policy represents AWS::IAM::Role.Policy.
type Role_Policy struct {
	PolicyName     any `json:"PolicyName,omitempty"`
	PolicyDocument any `json:"PolicyDocument,omitempty"`
}
