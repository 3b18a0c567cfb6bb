package main

import (
	"strings"
	"testing"
)

func TestGraphCmd_DOT(t *testing.T) {
	env := writeEnvFile(t, micropostEnv)

	out, err := execute(t, "graph", "--env-file", env)
	if err != nil {
		t.Fatalf("graph failed: %v", err)
	}
	if !strings.Contains(out, "digraph") {
		t.Errorf("output should be a DOT digraph, got:\n%s", out)
	}
	if !strings.Contains(out, "getUser") {
		t.Error("output should contain the getUser function")
	}
}

func TestGraphCmd_Mermaid(t *testing.T) {
	env := writeEnvFile(t, micropostEnv)

	out, err := execute(t, "graph", "--env-file", env, "-f", "mermaid", "-c")
	if err != nil {
		t.Fatalf("graph failed: %v", err)
	}
	if !strings.Contains(out, "graph") && !strings.Contains(out, "flowchart") {
		t.Errorf("output should be a Mermaid graph, got:\n%s", out)
	}
}

func TestGraphCmd_UnknownFormat(t *testing.T) {
	_, err := execute(t, "graph", "-f", "svg")
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
}
