// Package graph renders the deployment graph as DOT or Mermaid.
package graph

import (
	"io"
	"strings"

	"github.com/emicklei/dot"

	"github.com/cleanserverless/stackgen/internal/stack"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// wildcardNode is the node id standing for grants on every resource.
const wildcardNode = "AllResources"

// Generator renders deployment graphs.
type Generator struct {
	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByTarget groups functions by runtime image target.
	ClusterByTarget bool

	// IncludeWildcard draws grants scoped to every resource.
	IncludeWildcard bool
}

// Generate renders g and writes it to w.
func (gen *Generator) Generate(g *stack.Graph, w io.Writer) error {
	graph := gen.buildGraph(g)

	format := gen.Format
	if format == "" {
		format = FormatDOT
	}

	var output string
	if format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err := io.WriteString(w, output)
	return err
}

// GenerateString is a convenience method that returns the graph as a string.
func (gen *Generator) GenerateString(g *stack.Graph) (string, error) {
	var sb strings.Builder
	if err := gen.Generate(g, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (gen *Generator) buildGraph(g *stack.Graph) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	nodes := make(map[string]dot.Node)

	api := graph.Node(g.API.LogicalName).Label(nodeLabel(g.API.LogicalName, g.API.Name+" stage "+g.API.StageName))
	nodes[g.API.LogicalName] = api

	table := graph.Node(g.Table.LogicalName).Label(tableLabel(g.Table))
	table.Attr("shape", "cylinder")
	nodes[g.Table.LogicalName] = table

	bucket := graph.Node(g.Bucket.LogicalName).Label(nodeLabel(g.Bucket.LogicalName, g.Bucket.BucketName))
	bucket.Attr("shape", "folder")
	nodes[g.Bucket.LogicalName] = bucket

	gen.addFunctions(graph, g, nodes)

	for _, r := range g.Routes {
		fn, ok := nodes[r.Function]
		if !ok {
			continue
		}
		graph.Edge(api, fn, r.Method+" "+r.Path)
	}

	for _, e := range g.Grants {
		from, ok := nodes[e.Function]
		if !ok {
			continue
		}
		to, ok := nodes[e.Resource]
		if !ok && e.Resource == stack.Wildcard && gen.IncludeWildcard {
			to = graph.Node(wildcardNode).Label(nodeLabel(wildcardNode, stack.Wildcard))
			to.Attr("shape", "ellipse")
			nodes[e.Resource] = to
			ok = true
		}
		if !ok {
			continue
		}
		edge := graph.Edge(from, to)
		edge.Attr("style", "dashed")
		edge.Attr("color", "gray")
	}

	for _, s := range g.Subscriptions {
		from, ok := nodes[s.Bucket]
		if !ok {
			continue
		}
		to, ok := nodes[s.Function]
		if !ok {
			continue
		}
		graph.Edge(from, to, s.Kind.Short()).Attr("color", "blue")
	}

	return graph
}

func (gen *Generator) addFunctions(graph *dot.Graph, g *stack.Graph, nodes map[string]dot.Node) {
	parent := map[string]*dot.Graph{}
	if gen.ClusterByTarget {
		for _, target := range g.Targets() {
			cluster := graph.Subgraph("cluster_"+target, dot.ClusterOption{})
			cluster.Attr("label", target)
			cluster.Attr("style", "rounded")
			cluster.Attr("bgcolor", "lightyellow")
			parent[target] = cluster
		}
	}

	for _, fn := range g.Functions {
		if _, exists := nodes[fn.LogicalName]; exists {
			continue
		}
		sub := graph
		if c, ok := parent[fn.Target]; ok {
			sub = c
		}
		n := sub.Node(fn.LogicalName).Label(nodeLabel(fn.LogicalName, fn.FunctionName))
		nodes[fn.LogicalName] = n
	}
}

// nodeLabel shows the logical name with a detail line, since dot assigns
// its own node IDs.
func nodeLabel(name, detail string) string {
	return name + "\\n[" + detail + "]"
}

func tableLabel(t stack.TableSpec) string {
	keys := t.PartitionKeyName + ", " + t.SortKeyName
	if t.TableName == "" {
		return nodeLabel(t.LogicalName, keys)
	}
	return nodeLabel(t.LogicalName, t.TableName+": "+keys)
}
