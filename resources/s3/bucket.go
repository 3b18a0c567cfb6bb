// Package s3 provides CloudFormation resource types for AWS::S3.
package s3

// Bucket represents AWS::S3::Bucket.
type Bucket struct {
	BucketName                any                               `json:"BucketName,omitempty"`
	NotificationConfiguration *Bucket_NotificationConfiguration `json:"NotificationConfiguration,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (r Bucket) ResourceType() string {
	return "AWS::S3::Bucket"
}

// Bucket_NotificationConfiguration represents AWS::S3::Bucket.NotificationConfiguration.
type Bucket_NotificationConfiguration struct {
	LambdaConfigurations []Bucket_LambdaConfiguration `json:"LambdaConfigurations,omitempty"`
}

// Bucket_LambdaConfiguration represents AWS::S3::Bucket.LambdaConfiguration.
type Bucket_LambdaConfiguration struct {
	Event    any `json:"Event,omitempty"`
	Function any `json:"Function,omitempty"`
}
