// Package intrinsics provides the CloudFormation intrinsic functions used when
// rendering the deployment graph.
//
// Core intrinsic functions are re-exported from cloudformation-schema-go:
//
//	Ref{LogicalName: "ResourceTable"} → {"Ref": "ResourceTable"}
//	GetAtt{LogicalName: "ResourceTable", Attribute: "Arn"} → {"Fn::GetAtt": ["ResourceTable", "Arn"]}
//	Join{Delimiter: "", Values: []any{"a", "b"}} → {"Fn::Join": ["", ["a", "b"]]}
package intrinsics

import (
	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

type (
	// Ref represents a CloudFormation Ref intrinsic function.
	Ref = intrinsics.Ref

	// GetAtt represents a CloudFormation Fn::GetAtt intrinsic function.
	GetAtt = intrinsics.GetAtt

	// Sub represents a CloudFormation Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// Join represents a CloudFormation Fn::Join intrinsic function.
	Join = intrinsics.Join
)

// Param creates a Ref for a CloudFormation parameter.
var Param = intrinsics.Param

// RefTo returns a Ref to the given logical name.
func RefTo(logicalName string) Ref {
	return Ref{LogicalName: logicalName}
}

// ArnOf returns the Fn::GetAtt Arn reference of the given logical name.
func ArnOf(logicalName string) GetAtt {
	return GetAtt{LogicalName: logicalName, Attribute: "Arn"}
}

// Concat joins values with an empty delimiter.
func Concat(values ...any) Join {
	return Join{Delimiter: "", Values: values}
}
