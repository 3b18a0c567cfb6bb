package lambda

// Permission represents AWS::Lambda::Permission.
type Permission struct {
	Action        any `json:"Action,omitempty"`
	FunctionName  any `json:"FunctionName,omitempty"`
	Principal     any `json:"Principal,omitempty"`
	SourceAccount any `json:"SourceAccount,omitempty"`
	SourceArn     any `json:"SourceArn,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (r Permission) ResourceType() string {
	return "AWS::Lambda::Permission"
}

// ActionInvokeFunction is the action granted to invoking services.
const ActionInvokeFunction = "lambda:InvokeFunction"
