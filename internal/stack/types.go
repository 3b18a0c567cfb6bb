// Package stack builds the deployment graph of the micropost sample: one table,
// one bucket, one REST API, eleven functions, and the routes, permission edges
// and event subscriptions between them.
//
// Everything here is plain data. Build performs no I/O, never fails and never
// validates; checks live in the linter and in the provisioning engine.
package stack

// AttributeType is a key attribute type of the table.
type AttributeType string

const (
	AttributeString AttributeType = "S"
	AttributeNumber AttributeType = "N"
	AttributeBinary AttributeType = "B"
)

// CapacityMode is the table billing mode.
type CapacityMode string

const (
	CapacityOnDemand    CapacityMode = "PAY_PER_REQUEST"
	CapacityProvisioned CapacityMode = "PROVISIONED"
)

// TeardownPolicy decides what the provisioning engine does with a resource
// when it leaves the stack.
type TeardownPolicy string

const (
	TeardownDelete TeardownPolicy = "Delete"
	TeardownRetain TeardownPolicy = "Retain"
)

// Architecture is a function instruction set.
type Architecture string

const (
	ArchARM64  Architecture = "arm64"
	ArchX86_64 Architecture = "x86_64"
)

// EventKind is an object store notification kind.
type EventKind string

const (
	EventObjectCreated EventKind = "s3:ObjectCreated:*"
	EventObjectRemoved EventKind = "s3:ObjectRemoved:*"
)

// Short returns the kind without the provider prefix, e.g. "ObjectCreated".
func (k EventKind) Short() string {
	switch k {
	case EventObjectCreated:
		return "ObjectCreated"
	case EventObjectRemoved:
		return "ObjectRemoved"
	}
	return string(k)
}

// TableSpec describes the key-value table. The key pair is fixed at creation.
type TableSpec struct {
	LogicalName      string
	TableName        string
	PartitionKeyName string
	PartitionKeyType AttributeType
	SortKeyName      string
	SortKeyType      AttributeType
	CapacityMode     CapacityMode
	Teardown         TeardownPolicy
}

// BucketSpec describes the object store bucket.
type BucketSpec struct {
	LogicalName string
	BucketName  string
	Teardown    TeardownPolicy
}

// APISpec describes the REST API.
type APISpec struct {
	LogicalName string
	Name        string
	StageName   string
}

// FunctionSpec describes one deployed function. Target selects the entry point
// inside the shared deployment image.
type FunctionSpec struct {
	LogicalName    string
	FunctionName   string
	Target         string
	Architecture   Architecture
	TimeoutSeconds int
	MemoryMB       int
	Environment    map[string]string
}

// RouteSpec binds one (method, path) pair to a function by logical name.
type RouteSpec struct {
	Method   string
	Path     string
	Function string
}

// PermissionEdge grants actions on a resource to a function. Resource is a
// logical name or Wildcard.
type PermissionEdge struct {
	Resource string
	Function string
	Actions  []string
}

// EventSubscription routes one event kind from a bucket to a function.
type EventSubscription struct {
	Bucket   string
	Kind     EventKind
	Function string
}
