// Package pipeline models the nowcast worker sequence as a directed
// acyclic graph built from the worker table in the config.
package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"
)

var ErrCycle = errors.New("pipeline: worker graph contains a cycle")

// Graph is the validated worker dependency graph.
type Graph struct {
	g    graph.Graph[string, string]
	next map[string]map[string][]string
}

// Build constructs and validates the worker graph from the per-worker
// next tables, keyed worker -> msg type -> follow-on workers. Every
// entry becomes a directed edge; a cycle is a config error.
func Build(edges map[string]map[string][]string) (*Graph, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	names := make([]string, 0, len(edges))
	for name := range edges {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := g.AddVertex(name); err != nil {
			return nil, fmt.Errorf("pipeline: add worker %s: %w", name, err)
		}
	}

	next := make(map[string]map[string][]string, len(edges))
	for _, name := range names {
		next[name] = edges[name]
		for msgType, targets := range edges[name] {
			for _, target := range targets {
				err := g.AddEdge(name, target)
				if errors.Is(err, graph.ErrEdgeCreatesCycle) {
					return nil, fmt.Errorf(
						"%w: %s -> %s (on %q)", ErrCycle, name, target, msgType)
				}
				if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
					return nil, fmt.Errorf("pipeline: add edge %s -> %s: %w", name, target, err)
				}
			}
		}
	}
	return &Graph{g: g, next: next}, nil
}

// Next returns the workers to launch after source reports msgType.
func (p *Graph) Next(source, msgType string) []string {
	types, ok := p.next[source]
	if !ok {
		return nil
	}
	return types[msgType]
}

// Order returns the workers in a topological launch order.
func (p *Graph) Order() ([]string, error) {
	return graph.TopologicalSort(p.g)
}

// DOT renders the graph in Graphviz DOT format for the docs site.
func (p *Graph) DOT() (string, error) {
	order, err := p.Order()
	if err != nil {
		return "", err
	}
	out := "digraph nowcast {\n"
	for _, name := range order {
		out += fmt.Sprintf("  %q;\n", name)
	}
	for _, name := range order {
		msgTypes := make([]string, 0, len(p.next[name]))
		for msgType := range p.next[name] {
			msgTypes = append(msgTypes, msgType)
		}
		sort.Strings(msgTypes)
		for _, msgType := range msgTypes {
			for _, target := range p.next[name][msgType] {
				out += fmt.Sprintf("  %q -> %q [label=%q];\n", name, target, msgType)
			}
		}
	}
	out += "}\n"
	return out, nil
}
