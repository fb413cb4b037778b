package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NodeType identifies what a graph node does. The pipeline supports
// exactly these five types.
type NodeType string

const (
	NodePlanner  NodeType = "planner"
	NodeWriter   NodeType = "writer"
	NodeReviewer NodeType = "reviewer"
	NodeAnalyst  NodeType = "analyst"
	NodeDone     NodeType = "done"
)

// Condition guards an edge. Conditions are evaluated against the current
// run state in the order edges are declared; the first edge whose
// condition holds is taken.
type Condition string

const (
	// CondAlways always holds.
	CondAlways Condition = "always"

	// CondReviewFailed holds when the latest review did not pass.
	CondReviewFailed Condition = "review_failed"

	// CondReviewPassed holds when the latest review passed.
	CondReviewPassed Condition = "review_passed"

	// CondMissingFacts holds when the latest review found core brief
	// facts missing.
	CondMissingFacts Condition = "missing_facts"
)

// Edge is a directed, conditional transition between two named nodes.
type Edge struct {
	From string    `yaml:"from"`
	To   string    `yaml:"to"`
	When Condition `yaml:"when"`
}

// Graph is the pipeline topology. It is static configuration: loaded once
// per process and never mutated by runs.
type Graph struct {
	// Start is the default entry node for fresh runs.
	Start string `yaml:"start"`

	// MaxSteps is the runaway guard; traversals exceeding it fail.
	MaxSteps int `yaml:"max_steps"`

	// Nodes maps node names to node types.
	Nodes map[string]NodeType `yaml:"nodes"`

	// Edges lists transitions in declaration order. Order is the only
	// precedence rule: when several conditions could hold at a node, the
	// first declared edge wins.
	Edges []Edge `yaml:"edges"`
}

// DefaultMaxSteps bounds traversal when the topology does not set one.
// Generous enough for a full retry budget with re-planning.
const DefaultMaxSteps = 40

// DefaultGraph returns the built-in plan -> write -> review -> analyze ->
// done topology. A review with missing core facts proceeds to analysis
// (rewriting cannot conjure facts the brief lacks); other failures loop
// back to the writer until the retry budget runs out.
func DefaultGraph() *Graph {
	return &Graph{
		Start:    "plan",
		MaxSteps: DefaultMaxSteps,
		Nodes: map[string]NodeType{
			"plan":    NodePlanner,
			"write":   NodeWriter,
			"review":  NodeReviewer,
			"analyze": NodeAnalyst,
			"done":    NodeDone,
		},
		Edges: []Edge{
			{From: "plan", To: "write", When: CondAlways},
			{From: "write", To: "review", When: CondAlways},
			{From: "review", To: "analyze", When: CondMissingFacts},
			{From: "review", To: "write", When: CondReviewFailed},
			{From: "review", To: "analyze", When: CondReviewPassed},
			{From: "analyze", To: "done", When: CondAlways},
		},
	}
}

// LoadGraph reads a topology from a YAML file and validates it.
func LoadGraph(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file %q: %w", path, err)
	}

	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse graph file %q: %w", path, err)
	}
	if g.MaxSteps <= 0 {
		g.MaxSteps = DefaultMaxSteps
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks the topology for configuration errors: unknown node
// types, edges referencing undeclared nodes, a missing start node, and
// unknown edge conditions.
func (g *Graph) Validate() error {
	if g.Start == "" {
		return fmt.Errorf("graph has no start node")
	}
	if _, ok := g.Nodes[g.Start]; !ok {
		return &UnknownNodeError{Node: g.Start}
	}

	for name, typ := range g.Nodes {
		switch typ {
		case NodePlanner, NodeWriter, NodeReviewer, NodeAnalyst, NodeDone:
		default:
			return fmt.Errorf("node %q has unknown type %q", name, typ)
		}
	}

	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			return &UnknownNodeError{Node: e.From}
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return &UnknownNodeError{Node: e.To}
		}
		switch e.When {
		case CondAlways, CondReviewFailed, CondReviewPassed, CondMissingFacts:
		default:
			return fmt.Errorf("edge %s -> %s has unknown condition %q", e.From, e.To, e.When)
		}
	}

	return nil
}

// NextNode selects the successor of current by evaluating outgoing edges
// in declaration order against the state. It is a pure function of
// (graph, state, current). A node with no matching edge is a fatal
// configuration error.
func (g *Graph) NextNode(st *State, current string) (string, error) {
	for _, e := range g.Edges {
		if e.From != current {
			continue
		}
		if conditionHolds(e.When, st) {
			return e.To, nil
		}
	}
	return "", &NoMatchingEdgeError{Node: current}
}

func conditionHolds(c Condition, st *State) bool {
	switch c {
	case CondAlways:
		return true
	case CondReviewFailed:
		last, ok := st.LastReview()
		return ok && !last.Pass
	case CondReviewPassed:
		last, ok := st.LastReview()
		return ok && last.Pass
	case CondMissingFacts:
		last, ok := st.LastReview()
		return ok && last.MissingFacts
	}
	return false
}
