// Package linter checks a deployment graph for declarations the provisioning
// engine would reject or the owner should know about. The graph builder never
// validates, so this is the only place these checks happen before submission.
//
// Rules:
//
//	SG001: Duplicate (method, path) route
//	SG002: Duplicate function logical or deployed name
//	SG003: Malformed path or path placeholder
//	SG004: Empty table display name
//	SG005: Configured key names differ from the fixed key schema
//	SG006: Wildcard grant scoped to every resource
//	SG007: Function neither routed nor subscribed
//	SG008: Route, grant or subscription pointing at an undeclared node
package linter

import (
	"sort"

	"github.com/cleanserverless/stackgen/internal/stack"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Issue is a single finding.
type Issue struct {
	Rule     string
	Severity string
	Resource string
	Message  string
}

// Result contains the outcome of linting.
type Result struct {
	// Success is false when any issue has error severity.
	Success bool
	Issues  []Issue
}

// Counts returns the number of issues per severity.
func (r Result) Counts() map[string]int {
	counts := make(map[string]int)
	for _, issue := range r.Issues {
		counts[issue.Severity]++
	}
	return counts
}

// Options configures the linter.
type Options struct {
	// Rules to enable. If empty, all rules are enabled.
	EnabledRules []string
	// DisabledRules are skipped even when enabled.
	DisabledRules []string
}

// Lint runs the selected rules against g. Issues are ordered by rule, then
// by resource.
func Lint(g *stack.Graph, opts Options) Result {
	var issues []Issue
	for _, rule := range getRules(opts) {
		issues = append(issues, rule.Check(g)...)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Rule != issues[j].Rule {
			return issues[i].Rule < issues[j].Rule
		}
		return issues[i].Resource < issues[j].Resource
	})

	success := true
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			success = false
			break
		}
	}

	return Result{Success: success, Issues: issues}
}

// getRules returns the rules to use based on options.
func getRules(opts Options) []Rule {
	all := AllRules()

	disabled := make(map[string]bool)
	for _, id := range opts.DisabledRules {
		disabled[id] = true
	}

	enabled := make(map[string]bool)
	for _, id := range opts.EnabledRules {
		enabled[id] = true
	}

	var filtered []Rule
	for _, r := range all {
		if disabled[r.ID()] {
			continue
		}
		if len(enabled) > 0 && !enabled[r.ID()] {
			continue
		}
		filtered = append(filtered, r)
	}

	return filtered
}
