package stack

import (
	"sort"

	"github.com/cleanserverless/stackgen/internal/config"
)

// Fixed descriptor values.
const (
	TableLogicalName  = "ResourceTable"
	PartitionKeyName  = "PK"
	SortKeyName       = "SK"
	BucketLogicalName = "CleanServerlessTestBucket"
	BucketName        = "clean-serverless-test"
	APILogicalName    = "CleanServerlessBookSampleApi"
	APIName           = "CleanServerlessBookSampleAPI"
	StageName         = "dev"

	FunctionNamePrefix = "clean-serverless-"
	FunctionTimeout    = 30
	FunctionMemoryMB   = 1280
	FunctionArch       = ArchARM64

	// EventHandlerName is the logical name of the object-event function.
	EventHandlerName = "s3Handler"

	// Wildcard is the resource of a grant scoped to everything.
	Wildcard = "*"
)

// Action sets granted by Build.
var (
	TableFullAccess = []string{"dynamodb:*"}

	BucketReadWrite = []string{
		"s3:Abort*",
		"s3:DeleteObject*",
		"s3:GetBucket*",
		"s3:GetObject*",
		"s3:List*",
		"s3:PutObject",
		"s3:PutObjectLegalHold",
		"s3:PutObjectRetention",
		"s3:PutObjectTagging",
		"s3:PutObjectVersionTagging",
	}

	WildcardActions = []string{"dynamodb:*", "logs:*"}
)

// Route is one entry of the routing table.
type Route struct {
	Name   string
	Method string
	Path   string
}

// Routes is the fixed routing table of the request handlers.
var Routes = []Route{
	{Name: "deleteMicropost", Method: "DELETE", Path: "/v1/users/{user_id}/microposts/{micropost_id}"},
	{Name: "deleteUser", Method: "DELETE", Path: "/v1/users/{user_id}"},
	{Name: "getMicropost", Method: "GET", Path: "/v1/users/{user_id}/microposts/{micropost_id}"},
	{Name: "getMicroposts", Method: "GET", Path: "/v1/users/{user_id}/microposts"},
	{Name: "getUser", Method: "GET", Path: "/v1/users/{user_id}"},
	{Name: "getUsers", Method: "GET", Path: "/v1/users"},
	{Name: "postMicroposts", Method: "POST", Path: "/v1/users/{user_id}/microposts"},
	{Name: "postUsers", Method: "POST", Path: "/v1/users"},
	{Name: "putMicropost", Method: "PUT", Path: "/v1/users/{user_id}/microposts/{micropost_id}"},
	{Name: "putUser", Method: "PUT", Path: "/v1/users/{user_id}"},
}

// Graph is the complete deployment graph.
type Graph struct {
	Params        config.Params
	Table         TableSpec
	Bucket        BucketSpec
	API           APISpec
	Functions     []FunctionSpec
	Routes        []RouteSpec
	Grants        []PermissionEdge
	Subscriptions []EventSubscription
}

// BuildStorage returns the table descriptor. The display name is taken
// verbatim; the key schema is always (PK:S, SK:S).
func BuildStorage(p config.Params) TableSpec {
	return TableSpec{
		LogicalName:      TableLogicalName,
		TableName:        p.TableName,
		PartitionKeyName: PartitionKeyName,
		PartitionKeyType: AttributeString,
		SortKeyName:      SortKeyName,
		SortKeyType:      AttributeString,
		CapacityMode:     CapacityOnDemand,
		Teardown:         TeardownDelete,
	}
}

// BuildBucket returns the bucket descriptor.
func BuildBucket() BucketSpec {
	return BucketSpec{
		LogicalName: BucketLogicalName,
		BucketName:  BucketName,
		Teardown:    TeardownRetain,
	}
}

// BuildAPI returns the REST API descriptor.
func BuildAPI() APISpec {
	return APISpec{
		LogicalName: APILogicalName,
		Name:        APIName,
		StageName:   StageName,
	}
}

// BuildFunction returns a function descriptor. Only target and logicalName
// vary between functions; uniqueness of logicalName is not checked.
func BuildFunction(target, logicalName string, p config.Params) FunctionSpec {
	return FunctionSpec{
		LogicalName:    logicalName,
		FunctionName:   FunctionNamePrefix + logicalName,
		Target:         target,
		Architecture:   FunctionArch,
		TimeoutSeconds: FunctionTimeout,
		MemoryMB:       FunctionMemoryMB,
		Environment:    p.Env(),
	}
}

// BindRoute associates a (method, path) pair with a function. Conflicts are
// not checked.
func BindRoute(path, method string, fn FunctionSpec) RouteSpec {
	return RouteSpec{Method: method, Path: path, Function: fn.LogicalName}
}

// Build constructs the whole graph from the parameter bag.
func Build(p config.Params) *Graph {
	g := &Graph{
		Params: p,
		Table:  BuildStorage(p),
		Bucket: BuildBucket(),
		API:    BuildAPI(),
	}

	for _, r := range Routes {
		fn := BuildFunction(config.TargetAPI, r.Name, p)
		g.AddFunction(fn)
		g.GrantAccess(g.Table.LogicalName, fn, TableFullAccess...)
		g.GrantAccess(Wildcard, fn, WildcardActions...)
		g.AddRoute(BindRoute(r.Path, r.Method, fn))
	}

	handler := BuildFunction(config.TargetS3Event, EventHandlerName, p)
	g.AddFunction(handler)
	g.GrantAccess(g.Bucket.LogicalName, handler, BucketReadWrite...)
	g.GrantAccess(g.Table.LogicalName, handler, TableFullAccess...)
	g.GrantAccess(Wildcard, handler, WildcardActions...)
	g.Subscribe(g.Bucket, EventObjectCreated, handler)
	g.Subscribe(g.Bucket, EventObjectRemoved, handler)

	return g
}

// AddFunction appends a function descriptor.
func (g *Graph) AddFunction(fn FunctionSpec) {
	g.Functions = append(g.Functions, fn)
}

// AddRoute appends a route.
func (g *Graph) AddRoute(r RouteSpec) {
	g.Routes = append(g.Routes, r)
}

// GrantAccess records a permission edge. Edges are additive; repeating a grant
// is legal and changes nothing in EffectiveActions.
func (g *Graph) GrantAccess(resource string, fn FunctionSpec, actions ...string) {
	g.Grants = append(g.Grants, PermissionEdge{
		Resource: resource,
		Function: fn.LogicalName,
		Actions:  append([]string(nil), actions...),
	})
}

// Subscribe records one event subscription.
func (g *Graph) Subscribe(bucket BucketSpec, kind EventKind, fn FunctionSpec) {
	g.Subscriptions = append(g.Subscriptions, EventSubscription{
		Bucket:   bucket.LogicalName,
		Kind:     kind,
		Function: fn.LogicalName,
	})
}

// Function returns the first function with the given logical name.
func (g *Graph) Function(name string) (FunctionSpec, bool) {
	for _, fn := range g.Functions {
		if fn.LogicalName == name {
			return fn, true
		}
	}
	return FunctionSpec{}, false
}

// GrantsFor returns the permission edges of a function in declaration order.
func (g *Graph) GrantsFor(fn string) []PermissionEdge {
	var out []PermissionEdge
	for _, e := range g.Grants {
		if e.Function == fn {
			out = append(out, e)
		}
	}
	return out
}

// SubscriptionsFor returns the event subscriptions targeting a function.
func (g *Graph) SubscriptionsFor(fn string) []EventSubscription {
	var out []EventSubscription
	for _, s := range g.Subscriptions {
		if s.Function == fn {
			out = append(out, s)
		}
	}
	return out
}

// RoutesFor returns the routes bound to a function.
func (g *Graph) RoutesFor(fn string) []RouteSpec {
	var out []RouteSpec
	for _, r := range g.Routes {
		if r.Function == fn {
			out = append(out, r)
		}
	}
	return out
}

// EffectiveActions returns the sorted union of actions a function holds on a
// resource.
func (g *Graph) EffectiveActions(fn, resource string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range g.Grants {
		if e.Function != fn || e.Resource != resource {
			continue
		}
		for _, a := range e.Actions {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	sort.Strings(out)
	return out
}

// GrantedResources returns the sorted distinct resources a function holds
// grants on.
func (g *Graph) GrantedResources(fn string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range g.Grants {
		if e.Function == fn && !seen[e.Resource] {
			seen[e.Resource] = true
			out = append(out, e.Resource)
		}
	}
	sort.Strings(out)
	return out
}

// Targets returns the sorted distinct runtime targets of all functions.
func (g *Graph) Targets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, fn := range g.Functions {
		if !seen[fn.Target] {
			seen[fn.Target] = true
			out = append(out, fn.Target)
		}
	}
	sort.Strings(out)
	return out
}
