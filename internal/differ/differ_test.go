package differ

import (
	"os"
	"path/filepath"
	"testing"

	stackgen "github.com/cleanserverless/stackgen"
	"github.com/cleanserverless/stackgen/internal/config"
	"github.com/cleanserverless/stackgen/internal/stack"
	"github.com/cleanserverless/stackgen/internal/synth"
	"github.com/cleanserverless/stackgen/internal/template"
)

func build(t *testing.T, p config.Params) *stackgen.Template {
	t.Helper()
	tmpl, err := synth.Synthesize(stack.Build(p), synth.Options{})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	return tmpl
}

func TestCompare(t *testing.T) {
	t1 := &stackgen.Template{
		Resources: map[string]stackgen.ResourceDef{
			"Table":  {Type: "AWS::DynamoDB::Table", Properties: map[string]any{"TableName": "t1"}},
			"Bucket": {Type: "AWS::S3::Bucket", Properties: map[string]any{"BucketName": "b"}},
		},
	}

	t2 := &stackgen.Template{
		Resources: map[string]stackgen.ResourceDef{
			"Table": {Type: "AWS::DynamoDB::Table", Properties: map[string]any{"TableName": "t2"}},
			"Api":   {Type: "AWS::ApiGateway::RestApi", Properties: map[string]any{"Name": "api"}},
		},
	}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if len(result.Diff.Removed) != 1 || result.Diff.Removed[0].Resource != "Bucket" {
		t.Errorf("Removed = %+v, want [Bucket]", result.Diff.Removed)
	}
	if len(result.Diff.Added) != 1 || result.Diff.Added[0].Resource != "Api" {
		t.Errorf("Added = %+v, want [Api]", result.Diff.Added)
	}
	if len(result.Diff.Modified) != 1 {
		t.Fatalf("Modified = %d, want 1", len(result.Diff.Modified))
	}
	if got := result.Diff.Modified[0].Changes; len(got) != 1 || got[0] != "TableName modified" {
		t.Errorf("Changes = %v, want [TableName modified]", got)
	}
	if result.Summary.Total != 3 {
		t.Errorf("Summary.Total = %d, want 3", result.Summary.Total)
	}
}

func TestCompareIdenticalParameters(t *testing.T) {
	params := config.Params{TableName: "T1", PKName: "pk", SKName: "sk"}

	result, err := Compare(build(t, params), build(t, params), Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !result.Empty() {
		t.Errorf("expected empty diff, got %+v", result.Diff)
	}
}

func TestCompareEnvironmentChange(t *testing.T) {
	result, err := Compare(build(t, config.Params{TableName: "T1"}), build(t, config.Params{TableName: "T2"}), Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	// the table plus eleven functions
	if result.Summary.Modified != 12 {
		t.Errorf("Summary.Modified = %d, want 12", result.Summary.Modified)
	}
	if result.Summary.Added != 0 || result.Summary.Removed != 0 {
		t.Errorf("unexpected added/removed: %+v", result.Summary)
	}

	for _, entry := range result.Diff.Modified {
		if entry.Resource != "GetUserFunction" {
			continue
		}
		want := "Environment.Variables.DYNAMO_TABLE_NAME modified"
		if len(entry.Changes) != 1 || entry.Changes[0] != want {
			t.Errorf("Changes = %v, want [%s]", entry.Changes, want)
		}
	}
}

func TestCompareAgainstWrittenFile(t *testing.T) {
	params := config.Params{TableName: "T1"}
	tmpl := build(t, params)

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			var data []byte
			var err error
			if format == "json" {
				data, err = template.ToJSON(tmpl)
			} else {
				data, err = template.ToYAML(tmpl)
			}
			if err != nil {
				t.Fatal(err)
			}

			path := filepath.Join(t.TempDir(), "template."+format)
			if err := os.WriteFile(path, data, 0644); err != nil {
				t.Fatal(err)
			}

			loaded, err := LoadTemplate(path)
			if err != nil {
				t.Fatalf("LoadTemplate() error = %v", err)
			}

			result, err := Compare(loaded, build(t, params), Options{})
			if err != nil {
				t.Fatalf("Compare() error = %v", err)
			}
			if !result.Empty() {
				t.Errorf("expected empty diff, got %+v", result.Diff)
			}
		})
	}
}

func TestCompareEmpty(t *testing.T) {
	t1 := &stackgen.Template{Resources: map[string]stackgen.ResourceDef{}}
	t2 := &stackgen.Template{}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Summary.Total != 0 {
		t.Errorf("Summary.Total = %d, want 0", result.Summary.Total)
	}
}

func TestCompareTypeAndPolicyChange(t *testing.T) {
	t1 := &stackgen.Template{
		Resources: map[string]stackgen.ResourceDef{
			"Resource1": {Type: "AWS::S3::Bucket", DeletionPolicy: "Retain"},
		},
	}
	t2 := &stackgen.Template{
		Resources: map[string]stackgen.ResourceDef{
			"Resource1": {Type: "AWS::S3::AccessPoint", DeletionPolicy: "Delete", DependsOn: []string{"X"}},
		},
	}

	result, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(result.Diff.Modified) != 1 {
		t.Fatalf("Modified = %d, want 1", len(result.Diff.Modified))
	}

	want := map[string]bool{
		"Type changed: AWS::S3::Bucket → AWS::S3::AccessPoint": true,
		"DependsOn changed":                       true,
		"DeletionPolicy changed: Retain → Delete": true,
	}
	changes := result.Diff.Modified[0].Changes
	if len(changes) != len(want) {
		t.Fatalf("Changes = %v", changes)
	}
	for _, c := range changes {
		if !want[c] {
			t.Errorf("unexpected change %q", c)
		}
	}
}

func TestCompareSliceOrder(t *testing.T) {
	t1 := &stackgen.Template{Resources: map[string]stackgen.ResourceDef{
		"Fn": {Type: "AWS::Lambda::Function", Properties: map[string]any{"Architectures": []any{"arm64", "x86_64"}}},
	}}
	t2 := &stackgen.Template{Resources: map[string]stackgen.ResourceDef{
		"Fn": {Type: "AWS::Lambda::Function", Properties: map[string]any{"Architectures": []any{"x86_64", "arm64"}}},
	}}

	ordered, err := Compare(t1, t2, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if ordered.Summary.Modified != 1 {
		t.Errorf("expected reordering to count as a change")
	}

	unordered, err := Compare(t1, t2, Options{IgnoreOrder: true})
	if err != nil {
		t.Fatal(err)
	}
	if unordered.Summary.Modified != 0 {
		t.Errorf("expected reordering to be ignored, got %+v", unordered.Diff.Modified)
	}
}

func TestLoadTemplate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("Resources: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTemplate(path); err == nil {
		t.Error("expected parse error")
	}
	if _, err := LoadTemplate(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected read error")
	}
}

func TestEqualStringSlices(t *testing.T) {
	tests := []struct {
		a, b []string
		want bool
	}{
		{nil, nil, true},
		{[]string{}, []string{}, true},
		{[]string{"a", "b"}, []string{"a", "b"}, true},
		{[]string{"a"}, []string{"b"}, false},
		{[]string{"a"}, []string{"a", "b"}, false},
	}

	for _, tt := range tests {
		got := equalStringSlices(tt.a, tt.b)
		if got != tt.want {
			t.Errorf("equalStringSlices(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
