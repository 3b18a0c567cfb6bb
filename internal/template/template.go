// Package template assembles CloudFormation templates from typed resources.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	stackgen "github.com/cleanserverless/stackgen"
	"github.com/cleanserverless/stackgen/internal/serialize"
)

// FormatVersion is the only template format version CloudFormation accepts.
const FormatVersion = "2010-09-09"

type entry struct {
	resource            stackgen.Resource
	dependsOn           []string
	deletionPolicy      string
	updateReplacePolicy string
}

// Option adjusts a resource added to a Builder.
type Option func(*entry)

// DependsOn adds explicit dependencies, emitted as the DependsOn attribute.
func DependsOn(names ...string) Option {
	return func(e *entry) {
		e.dependsOn = append(e.dependsOn, names...)
	}
}

// DeletionPolicy sets both DeletionPolicy and UpdateReplacePolicy.
func DeletionPolicy(policy string) Option {
	return func(e *entry) {
		e.deletionPolicy = policy
		e.updateReplacePolicy = policy
	}
}

// Builder constructs CloudFormation templates from typed resources.
type Builder struct {
	description string
	resources   map[string]*entry
	parameters  map[string]stackgen.Parameter
	outputs     map[string]stackgen.Output
	errs        []error
}

// NewBuilder creates an empty template builder.
func NewBuilder(description string) *Builder {
	return &Builder{
		description: description,
		resources:   make(map[string]*entry),
		parameters:  make(map[string]stackgen.Parameter),
		outputs:     make(map[string]stackgen.Output),
	}
}

// Add declares a resource under a logical name. A name added twice is
// reported by Build.
func (b *Builder) Add(name string, r stackgen.Resource, opts ...Option) {
	if _, exists := b.resources[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("duplicate logical ID %q", name))
		return
	}
	e := &entry{resource: r}
	for _, opt := range opts {
		opt(e)
	}
	b.resources[name] = e
}

// AddParameter declares a template parameter.
func (b *Builder) AddParameter(name string, p stackgen.Parameter) {
	b.parameters[name] = p
}

// AddOutput declares a template output.
func (b *Builder) AddOutput(name string, o stackgen.Output) {
	b.outputs[name] = o
}

// Build constructs the CloudFormation template.
func (b *Builder) Build() (*stackgen.Template, error) {
	declared, props, err := b.declare()
	if err != nil {
		return nil, err
	}

	template := &stackgen.Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              b.description,
		Resources:                make(map[string]stackgen.ResourceDef, len(declared)),
	}

	for _, d := range declared {
		e := b.resources[d.Name]
		template.Resources[d.Name] = stackgen.ResourceDef{
			Type:                d.Type,
			Properties:          props[d.Name],
			DependsOn:           explicitDependsOn(e.dependsOn),
			DeletionPolicy:      e.deletionPolicy,
			UpdateReplacePolicy: e.updateReplacePolicy,
		}
	}

	if len(b.parameters) > 0 {
		template.Parameters = make(map[string]stackgen.Parameter, len(b.parameters))
		for name, p := range b.parameters {
			if p.Type == "" {
				p.Type = "String"
			}
			if p.Default != nil {
				if p.Default, err = normalize(p.Default); err != nil {
					return nil, fmt.Errorf("parameter %s: %w", name, err)
				}
			}
			template.Parameters[name] = p
		}
	}

	if len(b.outputs) > 0 {
		template.Outputs = make(map[string]stackgen.Output, len(b.outputs))
		for name, o := range b.outputs {
			if o.Value, err = normalize(o.Value); err != nil {
				return nil, fmt.Errorf("output %s: %w", name, err)
			}
			template.Outputs[name] = o
		}
	}

	return template, nil
}

// declare serializes every resource and orders them so that each follows
// its dependencies.
func (b *Builder) declare() ([]stackgen.DeclaredResource, map[string]map[string]any, error) {
	if len(b.errs) > 0 {
		return nil, nil, errors.Join(b.errs...)
	}

	props := make(map[string]map[string]any, len(b.resources))
	deps := make(map[string][]string, len(b.resources))

	for name, e := range b.resources {
		p, err := serialize.Properties(e.resource)
		if err != nil {
			return nil, nil, fmt.Errorf("serializing %s: %w", name, err)
		}
		props[name] = p

		for _, dep := range e.dependsOn {
			if _, exists := b.resources[dep]; !exists {
				return nil, nil, fmt.Errorf("%s depends on undeclared resource %s", name, dep)
			}
		}
		deps[name] = b.dependencies(e.dependsOn, serialize.References(p))
	}

	order, err := topologicalSort(deps)
	if err != nil {
		return nil, nil, err
	}

	declared := make([]stackgen.DeclaredResource, 0, len(order))
	for _, name := range order {
		declared = append(declared, stackgen.DeclaredResource{
			Name:         name,
			Type:         b.resources[name].resource.ResourceType(),
			Dependencies: deps[name],
		})
	}
	return declared, props, nil
}

// dependencies merges explicit and referenced names, keeping only declared
// resources. Parameters and pseudo parameters are dropped here.
func (b *Builder) dependencies(explicit, refs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{explicit, refs} {
		for _, name := range list {
			if _, ok := b.resources[name]; ok && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func explicitDependsOn(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

// topologicalSort returns resources in dependency order.
func topologicalSort(deps map[string][]string) ([]string, error) {
	// Build adjacency list
	graph := make(map[string][]string)
	inDegree := make(map[string]int)

	for name := range deps {
		graph[name] = nil
		inDegree[name] = 0
	}

	for name, list := range deps {
		for _, dep := range list {
			graph[dep] = append(graph[dep], name)
			inDegree[name]++
		}
	}

	// Kahn's algorithm
	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue) // Deterministic order

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range graph[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(deps) {
		return nil, detectCycle(deps)
	}

	return result, nil
}

// detectCycle finds and reports a cycle in the dependency graph.
func detectCycle(deps map[string][]string) error {
	visited := make(map[string]bool)
	path := make(map[string]bool)

	var cycle []string
	var findCycle func(node string) bool
	findCycle = func(node string) bool {
		visited[node] = true
		path[node] = true

		for _, dep := range deps[node] {
			if !visited[dep] {
				if findCycle(dep) {
					cycle = append([]string{node}, cycle...)
					return true
				}
			} else if path[dep] {
				cycle = append([]string{dep, node}, cycle...)
				return true
			}
		}

		path[node] = false
		return false
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] && findCycle(name) {
			break
		}
	}

	if len(cycle) > 0 {
		return fmt.Errorf("circular dependency detected: %s", strings.Join(cycle, " → "))
	}
	return errors.New("circular dependency detected")
}

// normalize converts v to its JSON form (maps, slices, scalars) so that
// intrinsics render the same in JSON and YAML.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToJSON serializes the template to JSON.
func ToJSON(t *stackgen.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML.
func ToYAML(t *stackgen.Template) ([]byte, error) {
	return yaml.Marshal(t)
}
