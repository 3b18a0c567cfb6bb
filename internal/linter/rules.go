package linter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cleanserverless/stackgen/internal/stack"
)

// Rule is the interface for lint rules.
type Rule interface {
	ID() string
	Description() string
	Check(g *stack.Graph) []Issue
}

// AllRules returns every rule in ID order.
func AllRules() []Rule {
	return []Rule{
		DuplicateRoute{},
		DuplicateFunction{},
		MalformedPath{},
		EmptyTableName{},
		KeyNameMismatch{},
		WildcardGrant{},
		UnwiredFunction{},
		DanglingReference{},
	}
}

// DuplicateRoute detects two routes sharing a (method, path) pair. The
// provider's behavior for such a pair is undefined.
type DuplicateRoute struct{}

func (r DuplicateRoute) ID() string          { return "SG001" }
func (r DuplicateRoute) Description() string { return "Routes must have unique (method, path) pairs" }

func (r DuplicateRoute) Check(g *stack.Graph) []Issue {
	var issues []Issue
	first := make(map[string]string)

	for _, route := range g.Routes {
		key := strings.ToUpper(route.Method) + " " + route.Path
		if owner, seen := first[key]; seen {
			issues = append(issues, Issue{
				Rule:     r.ID(),
				Severity: SeverityError,
				Resource: route.Function,
				Message:  fmt.Sprintf("route %s is already bound to %s", key, owner),
			})
			continue
		}
		first[key] = route.Function
	}

	return issues
}

// DuplicateFunction detects functions sharing a logical name or a deployed
// function name.
type DuplicateFunction struct{}

func (r DuplicateFunction) ID() string          { return "SG002" }
func (r DuplicateFunction) Description() string { return "Function names must be unique" }

func (r DuplicateFunction) Check(g *stack.Graph) []Issue {
	var issues []Issue
	logical := make(map[string]bool)
	deployed := make(map[string]bool)

	for _, fn := range g.Functions {
		if logical[fn.LogicalName] {
			issues = append(issues, Issue{
				Rule:     r.ID(),
				Severity: SeverityError,
				Resource: fn.LogicalName,
				Message:  fmt.Sprintf("function %s is declared more than once", fn.LogicalName),
			})
		} else if deployed[fn.FunctionName] {
			issues = append(issues, Issue{
				Rule:     r.ID(),
				Severity: SeverityError,
				Resource: fn.LogicalName,
				Message:  fmt.Sprintf("deployed name %s is used by more than one function", fn.FunctionName),
			})
		}
		logical[fn.LogicalName] = true
		deployed[fn.FunctionName] = true
	}

	return issues
}

// MalformedPath detects route paths the API would reject: a missing leading
// slash, empty segments, unbalanced braces, invalid placeholder names and
// placeholders repeated within one path.
type MalformedPath struct{}

func (r MalformedPath) ID() string { return "SG003" }
func (r MalformedPath) Description() string {
	return "Route paths and placeholders must be well formed"
}

var (
	literalSegment     = regexp.MustCompile(`^[A-Za-z0-9._~-]+$`)
	placeholderSegment = regexp.MustCompile(`^\{([A-Za-z_][A-Za-z0-9_]*)\+?\}$`)
)

func (r MalformedPath) Check(g *stack.Graph) []Issue {
	var issues []Issue

	for _, route := range g.Routes {
		if problem := pathProblem(route.Path); problem != "" {
			issues = append(issues, Issue{
				Rule:     r.ID(),
				Severity: SeverityWarning,
				Resource: route.Function,
				Message:  fmt.Sprintf("%s %s: %s", route.Method, route.Path, problem),
			})
		}
	}

	return issues
}

func pathProblem(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "path must start with /"
	}
	if path == "/" {
		return ""
	}

	names := make(map[string]bool)
	for _, seg := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if seg == "" {
			return "empty path segment"
		}
		if m := placeholderSegment.FindStringSubmatch(seg); m != nil {
			if names[m[1]] {
				return fmt.Sprintf("placeholder {%s} appears more than once", m[1])
			}
			names[m[1]] = true
			continue
		}
		if strings.ContainsAny(seg, "{}") {
			return fmt.Sprintf("malformed placeholder %q", seg)
		}
		if !literalSegment.MatchString(seg) {
			return fmt.Sprintf("invalid characters in segment %q", seg)
		}
	}
	return ""
}

// EmptyTableName flags a table without a display name. The provisioning
// engine then generates one, which the deployed functions cannot know.
type EmptyTableName struct{}

func (r EmptyTableName) ID() string          { return "SG004" }
func (r EmptyTableName) Description() string { return "Table display name should be set" }

func (r EmptyTableName) Check(g *stack.Graph) []Issue {
	if g.Table.TableName != "" {
		return nil
	}
	return []Issue{{
		Rule:     r.ID(),
		Severity: SeverityWarning,
		Resource: g.Table.LogicalName,
		Message:  "DYNAMO_TABLE_NAME is empty; the table name will be generated and functions receive an empty name",
	}}
}

// KeyNameMismatch flags configured key attribute names that differ from the
// table's fixed key schema. The configured names only reach the functions'
// environment.
type KeyNameMismatch struct{}

func (r KeyNameMismatch) ID() string { return "SG005" }
func (r KeyNameMismatch) Description() string {
	return "Configured key names should match the table key schema"
}

func (r KeyNameMismatch) Check(g *stack.Graph) []Issue {
	var issues []Issue

	check := func(key, configured, actual string) {
		if configured == "" || configured == actual {
			return
		}
		issues = append(issues, Issue{
			Rule:     r.ID(),
			Severity: SeverityWarning,
			Resource: g.Table.LogicalName,
			Message:  fmt.Sprintf("%s=%s but the table key is %s", key, configured, actual),
		})
	}
	check("DYNAMO_PK_NAME", g.Params.PKName, g.Table.PartitionKeyName)
	check("DYNAMO_SK_NAME", g.Params.SKName, g.Table.SortKeyName)

	return issues
}

// WildcardGrant reports functions holding grants on every resource.
type WildcardGrant struct{}

func (r WildcardGrant) ID() string          { return "SG006" }
func (r WildcardGrant) Description() string { return "Grants scoped to every resource" }

func (r WildcardGrant) Check(g *stack.Graph) []Issue {
	var issues []Issue
	reported := make(map[string]bool)

	for _, e := range g.Grants {
		if e.Resource != stack.Wildcard || reported[e.Function] {
			continue
		}
		reported[e.Function] = true
		issues = append(issues, Issue{
			Rule:     r.ID(),
			Severity: SeverityInfo,
			Resource: e.Function,
			Message: fmt.Sprintf("%s holds %s on all resources",
				e.Function, strings.Join(g.EffectiveActions(e.Function, stack.Wildcard), ", ")),
		})
	}

	return issues
}

// UnwiredFunction flags functions nothing can invoke.
type UnwiredFunction struct{}

func (r UnwiredFunction) ID() string          { return "SG007" }
func (r UnwiredFunction) Description() string { return "Functions should be routed or subscribed" }

func (r UnwiredFunction) Check(g *stack.Graph) []Issue {
	var issues []Issue
	for _, fn := range g.Functions {
		if len(g.RoutesFor(fn.LogicalName)) > 0 || len(g.SubscriptionsFor(fn.LogicalName)) > 0 {
			continue
		}
		issues = append(issues, Issue{
			Rule:     r.ID(),
			Severity: SeverityWarning,
			Resource: fn.LogicalName,
			Message:  fmt.Sprintf("function %s has no route and no event subscription", fn.LogicalName),
		})
	}
	return issues
}

// DanglingReference detects edges whose endpoints are not declared.
type DanglingReference struct{}

func (r DanglingReference) ID() string { return "SG008" }
func (r DanglingReference) Description() string {
	return "Routes, grants and subscriptions must reference declared nodes"
}

func (r DanglingReference) Check(g *stack.Graph) []Issue {
	var issues []Issue
	add := func(resource, format string, args ...any) {
		issues = append(issues, Issue{
			Rule:     r.ID(),
			Severity: SeverityError,
			Resource: resource,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	known := func(name string) bool {
		_, ok := g.Function(name)
		return ok
	}

	for _, route := range g.Routes {
		if !known(route.Function) {
			add(route.Function, "route %s %s is bound to undeclared function %s", route.Method, route.Path, route.Function)
		}
	}
	for _, e := range g.Grants {
		if !known(e.Function) {
			add(e.Function, "grant on %s is held by undeclared function %s", e.Resource, e.Function)
		}
		switch e.Resource {
		case stack.Wildcard, g.Table.LogicalName, g.Bucket.LogicalName:
		default:
			add(e.Function, "grant to %s targets undeclared resource %s", e.Function, e.Resource)
		}
	}
	for _, s := range g.Subscriptions {
		if !known(s.Function) {
			add(s.Function, "subscription %s targets undeclared function %s", s.Kind.Short(), s.Function)
		}
		if s.Bucket != g.Bucket.LogicalName {
			add(s.Function, "subscription %s is on undeclared bucket %s", s.Kind.Short(), s.Bucket)
		}
	}

	return issues
}
