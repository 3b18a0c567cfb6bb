// Package differ compares CloudFormation templates resource by resource.
package differ

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/r3labs/diff/v2"
	"gopkg.in/yaml.v3"

	stackgen "github.com/cleanserverless/stackgen"
)

// Options configures the differ.
type Options struct {
	// IgnoreOrder ignores array element order in comparisons
	IgnoreOrder bool
}

// Result contains the difference between two templates.
type Result struct {
	Diff    stackgen.TemplateDiff `json:"diff"`
	Summary stackgen.DiffSummary  `json:"summary"`
}

// Empty reports whether the templates have identical resources.
func (r *Result) Empty() bool {
	return r.Summary.Total == 0
}

// Compare compares two CloudFormation templates and returns differences.
// Both templates are normalized to their JSON form first, so a freshly built
// template compares equal to the file it was written to.
func Compare(template1, template2 *stackgen.Template, opts Options) (*Result, error) {
	t1, err := normalize(template1)
	if err != nil {
		return nil, err
	}
	t2, err := normalize(template2)
	if err != nil {
		return nil, err
	}

	differ, err := diff.NewDiffer(diff.SliceOrdering(!opts.IgnoreOrder))
	if err != nil {
		return nil, fmt.Errorf("creating differ: %w", err)
	}

	result := &Result{}
	res1 := t1.Resources
	res2 := t2.Resources

	// Find added resources (in template2 but not in template1)
	for name, def := range res2 {
		if _, exists := res1[name]; !exists {
			result.Diff.Added = append(result.Diff.Added, stackgen.DiffEntry{
				Resource: name,
				Type:     def.Type,
			})
		}
	}

	// Find removed resources (in template1 but not in template2)
	for name, def := range res1 {
		if _, exists := res2[name]; !exists {
			result.Diff.Removed = append(result.Diff.Removed, stackgen.DiffEntry{
				Resource: name,
				Type:     def.Type,
			})
		}
	}

	for name, def1 := range res1 {
		def2, exists := res2[name]
		if !exists {
			continue
		}
		changes, err := compareResources(differ, def1, def2)
		if err != nil {
			return nil, fmt.Errorf("comparing %s: %w", name, err)
		}
		if len(changes) > 0 {
			result.Diff.Modified = append(result.Diff.Modified, stackgen.DiffEntry{
				Resource: name,
				Type:     def1.Type,
				Changes:  changes,
			})
		}
	}

	sortEntries(result.Diff.Added)
	sortEntries(result.Diff.Removed)
	sortEntries(result.Diff.Modified)

	result.Summary = stackgen.DiffSummary{
		Added:    len(result.Diff.Added),
		Removed:  len(result.Diff.Removed),
		Modified: len(result.Diff.Modified),
	}
	result.Summary.Total = result.Summary.Added + result.Summary.Removed + result.Summary.Modified

	return result, nil
}

// CompareFiles compares two template files.
func CompareFiles(file1, file2 string, opts Options) (*Result, error) {
	t1, err := LoadTemplate(file1)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file1, err)
	}

	t2, err := LoadTemplate(file2)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file2, err)
	}

	return Compare(t1, t2, opts)
}

// LoadTemplate loads a CloudFormation template from a JSON or YAML file.
func LoadTemplate(path string) (*stackgen.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var template stackgen.Template

	// Try JSON first
	if err := json.Unmarshal(data, &template); err != nil {
		if err := yaml.Unmarshal(data, &template); err != nil {
			return nil, fmt.Errorf("failed to parse as JSON or YAML: %w", err)
		}
	}

	return &template, nil
}

// normalize round-trips a template through JSON so numbers, slices and maps
// have the same dynamic types whatever their origin.
func normalize(t *stackgen.Template) (*stackgen.Template, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("normalizing template: %w", err)
	}
	var out stackgen.Template
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalizing template: %w", err)
	}
	if out.Resources == nil {
		out.Resources = map[string]stackgen.ResourceDef{}
	}
	return &out, nil
}

func compareResources(differ *diff.Differ, def1, def2 stackgen.ResourceDef) ([]string, error) {
	var changes []string

	if def1.Type != def2.Type {
		changes = append(changes, fmt.Sprintf("Type changed: %s → %s", def1.Type, def2.Type))
	}

	propChanges, err := compareProperties(differ, def1.Properties, def2.Properties)
	if err != nil {
		return nil, err
	}
	changes = append(changes, propChanges...)

	if !equalStringSlices(def1.DependsOn, def2.DependsOn) {
		changes = append(changes, "DependsOn changed")
	}
	if def1.DeletionPolicy != def2.DeletionPolicy {
		changes = append(changes, fmt.Sprintf("DeletionPolicy changed: %s → %s", def1.DeletionPolicy, def2.DeletionPolicy))
	}

	return changes, nil
}

// compareProperties lists changed property paths, e.g. "Timeout modified" or
// "Environment.Variables.DYNAMO_TABLE_NAME modified".
func compareProperties(differ *diff.Differ, props1, props2 map[string]any) ([]string, error) {
	if props1 == nil {
		props1 = map[string]any{}
	}
	if props2 == nil {
		props2 = map[string]any{}
	}

	changelog, err := differ.Diff(props1, props2)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var changes []string
	for _, c := range changelog {
		line := strings.Join(c.Path, ".") + " " + verb(c.Type)
		if !seen[line] {
			seen[line] = true
			changes = append(changes, line)
		}
	}

	sort.Strings(changes)
	return changes, nil
}

func verb(changeType string) string {
	switch changeType {
	case diff.CREATE:
		return "added"
	case diff.DELETE:
		return "removed"
	}
	return "modified"
}

// equalStringSlices compares two string slices for equality.
func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sortEntries sorts diff entries by resource name.
func sortEntries(entries []stackgen.DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Resource < entries[j].Resource
	})
}
