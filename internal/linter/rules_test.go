package linter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanserverless/stackgen/internal/config"
	"github.com/cleanserverless/stackgen/internal/stack"
)

func configured() *stack.Graph {
	return stack.Build(config.Params{TableName: "T1", PKName: "PK", SKName: "SK"})
}

func TestDuplicateRoute(t *testing.T) {
	g := configured()
	assert.Empty(t, DuplicateRoute{}.Check(g))

	fn, _ := g.Function("getUsers")
	g.AddRoute(stack.BindRoute("/v1/users", "get", fn))

	issues := DuplicateRoute{}.Check(g)
	require.Len(t, issues, 1)
	assert.Equal(t, "SG001", issues[0].Rule)
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "GET /v1/users")
}

func TestDuplicateFunction(t *testing.T) {
	g := configured()
	assert.Empty(t, DuplicateFunction{}.Check(g))

	g.AddFunction(stack.BuildFunction(config.TargetAPI, "getUser", g.Params))
	clash := stack.BuildFunction(config.TargetAPI, "other", g.Params)
	clash.FunctionName = "clean-serverless-putUser"
	g.AddFunction(clash)

	issues := DuplicateFunction{}.Check(g)
	require.Len(t, issues, 2)
	assert.Contains(t, issues[0].Message, "getUser is declared more than once")
	assert.Contains(t, issues[1].Message, "clean-serverless-putUser")
}

func TestPathProblem(t *testing.T) {
	tests := []struct {
		path    string
		problem string
	}{
		{"/", ""},
		{"/v1/users", ""},
		{"/v1/users/{user_id}/microposts/{micropost_id}", ""},
		{"/files/{proxy+}", ""},
		{"v1/users", "path must start with /"},
		{"/v1//users", "empty path segment"},
		{"/v1/users/{user_id", `malformed placeholder "{user_id"`},
		{"/v1/users/user_id}", `malformed placeholder "user_id}"`},
		{"/v1/users/{}", `malformed placeholder "{}"`},
		{"/v1/users/{1id}", `malformed placeholder "{1id}"`},
		{"/v1/{id}/x/{id}", "placeholder {id} appears more than once"},
		{"/v1/us ers", `invalid characters in segment "us ers"`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.problem, pathProblem(tt.path))
		})
	}
}

func TestMalformedPath(t *testing.T) {
	g := configured()
	assert.Empty(t, MalformedPath{}.Check(g))

	fn, _ := g.Function("getUser")
	g.AddRoute(stack.BindRoute("/v1/users/{user_id", "GET", fn))

	issues := MalformedPath{}.Check(g)
	require.Len(t, issues, 1)
	assert.Equal(t, "SG003", issues[0].Rule)
	assert.Equal(t, "getUser", issues[0].Resource)
}

func TestEmptyTableName(t *testing.T) {
	assert.Empty(t, EmptyTableName{}.Check(configured()))

	issues := EmptyTableName{}.Check(stack.Build(config.Params{}))
	require.Len(t, issues, 1)
	assert.Equal(t, "ResourceTable", issues[0].Resource)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
}

func TestKeyNameMismatch(t *testing.T) {
	tests := []struct {
		name   string
		params config.Params
		count  int
	}{
		{"matching", config.Params{PKName: "PK", SKName: "SK"}, 0},
		{"unset", config.Params{}, 0},
		{"both differ", config.Params{PKName: "pk", SKName: "sk"}, 2},
		{"sort key differs", config.Params{PKName: "PK", SKName: "createdAt"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := KeyNameMismatch{}.Check(stack.Build(tt.params))
			assert.Len(t, issues, tt.count)
		})
	}
}

func TestWildcardGrant(t *testing.T) {
	issues := WildcardGrant{}.Check(configured())

	require.Len(t, issues, 11)
	for _, issue := range issues {
		assert.Equal(t, SeverityInfo, issue.Severity)
		assert.Contains(t, issue.Message, "dynamodb:*, logs:*")
	}
}

func TestUnwiredFunction(t *testing.T) {
	g := configured()
	assert.Empty(t, UnwiredFunction{}.Check(g))

	g.AddFunction(stack.BuildFunction(config.TargetAPI, "orphan", g.Params))

	issues := UnwiredFunction{}.Check(g)
	require.Len(t, issues, 1)
	assert.Equal(t, "orphan", issues[0].Resource)
}

func TestDanglingReference(t *testing.T) {
	g := configured()
	assert.Empty(t, DanglingReference{}.Check(g))

	ghost := stack.BuildFunction(config.TargetAPI, "ghost", g.Params)
	g.AddRoute(stack.BindRoute("/v1/ghost", "GET", ghost))
	g.GrantAccess("OtherTable", ghost, "dynamodb:GetItem")
	g.Subscribe(stack.BucketSpec{LogicalName: "OtherBucket"}, stack.EventObjectCreated, ghost)

	issues := DanglingReference{}.Check(g)
	// route, grant holder, grant target, subscription target, subscription bucket
	assert.Len(t, issues, 5)
}

func TestLint_BuiltGraph(t *testing.T) {
	result := Lint(configured(), Options{})

	assert.True(t, result.Success)
	counts := result.Counts()
	assert.Equal(t, 11, counts[SeverityInfo])
	assert.Zero(t, counts[SeverityError])
	assert.Zero(t, counts[SeverityWarning])
}

func TestLint_EmptyParameterBag(t *testing.T) {
	result := Lint(stack.Build(config.Params{}), Options{DisabledRules: []string{"SG006"}})

	assert.True(t, result.Success)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "SG004", result.Issues[0].Rule)
}

func TestLint_FailsOnErrors(t *testing.T) {
	g := configured()
	g.AddFunction(stack.BuildFunction(config.TargetAPI, "getUser", g.Params))

	result := Lint(g, Options{})
	assert.False(t, result.Success)
}

func TestLint_EnabledRules(t *testing.T) {
	result := Lint(stack.Build(config.Params{PKName: "pk"}), Options{EnabledRules: []string{"SG005"}})

	require.Len(t, result.Issues, 1)
	assert.Equal(t, "SG005", result.Issues[0].Rule)
}

func TestLint_SortedByRule(t *testing.T) {
	result := Lint(stack.Build(config.Params{PKName: "pk"}), Options{})

	for i := 1; i < len(result.Issues); i++ {
		assert.LessOrEqual(t, result.Issues[i-1].Rule, result.Issues[i].Rule)
	}
}

func TestAllRules_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for _, r := range AllRules() {
		assert.False(t, seen[r.ID()], r.ID())
		seen[r.ID()] = true
		assert.NotEmpty(t, r.Description())
	}
	assert.Len(t, seen, 8)
}
