// Package dynamodb provides CloudFormation resource types for AWS::DynamoDB.
package dynamodb

// Table represents AWS::DynamoDB::Table.
type Table struct {
	// TableName is the display name; omitted to let CloudFormation generate one.
	TableName            any                         `json:"TableName,omitempty"`
	AttributeDefinitions []Table_AttributeDefinition `json:"AttributeDefinitions,omitempty"`
	KeySchema            []Table_KeySchema           `json:"KeySchema,omitempty"`
	BillingMode          any                         `json:"BillingMode,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (r Table) ResourceType() string {
	return "AWS::DynamoDB::Table"
}

// Table_AttributeDefinition represents AWS::DynamoDB::Table.AttributeDefinition.
type Table_AttributeDefinition struct {
	AttributeName any `json:"AttributeName,omitempty"`
	AttributeType any `json:"AttributeType,omitempty"`
}

// Table_KeySchema represents AWS::DynamoDB::Table.KeySchema.
type Table_KeySchema struct {
	AttributeName any `json:"AttributeName,omitempty"`
	KeyType       any `json:"KeyType,omitempty"`
}

// Key types.
const (
	KeyTypeHash  = "HASH"
	KeyTypeRange = "RANGE"
)
