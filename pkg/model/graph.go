package model

import (
	"github.com/ritzau/load-factors/pkg/graph"
	"github.com/ritzau/load-factors/pkg/loadfactor"
)

// Graph is the JSON export of a load-factor computation, used by the web API
type Graph struct {
	Entry string           `json:"entry"`
	Nodes map[string]*Node `json:"nodes"`
	Edges []*Edge          `json:"edges"`
}

// NewGraph creates a new empty graph.
func NewGraph(entry string) *Graph {
	return &Graph{
		Entry: entry,
		Nodes: make(map[string]*Node),
		Edges: make([]*Edge, 0),
	}
}

// Node is a service with its computed load
type Node struct {
	ID       string `json:"id"`
	Load     int    `json:"load"`
	Declared bool   `json:"declared"` // false for external references
	Reached  bool   `json:"reached"`  // has an entry in the load map
	Position int    `json:"position"` // index in traversal order, -1 if never visited
	Distance int    `json:"distance"` // dependency hops from the entry point, -1 if unreachable
}

// Edge is a distinct dependency between two services
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"` // load carried along this edge, per occurrence
}

// AddNode adds a node to the graph. If a node with the same ID exists, it is replaced.
func (g *Graph) AddNode(node *Node) {
	g.Nodes[node.ID] = node
}

// AddEdge adds an edge to the graph.
func (g *Graph) AddEdge(edge *Edge) {
	g.Edges = append(g.Edges, edge)
}

// FromResult builds the export graph for a computation
func FromResult(result *loadfactor.Result) *Graph {
	sg := graph.BuildServiceGraph(result.Graph, result.Declared)
	g := NewGraph(result.Entry)

	position := make(map[string]int, len(result.Order))
	for i, name := range result.Order {
		if _, seen := position[name]; !seen {
			position[name] = i
		}
	}

	// The entry point is always present, even when it was never declared
	sg.AddService(result.Entry, result.Declared.Contains(result.Entry))
	distances := sg.Distances(result.Entry)

	for _, sn := range sg.Nodes() {
		load, reached := result.Loads[sn.Name]
		pos, visited := position[sn.Name]
		if !visited {
			pos = -1
		}
		g.AddNode(&Node{
			ID:       sn.Name,
			Load:     load,
			Declared: sn.Declared,
			Reached:  reached,
			Position: pos,
			Distance: distances[sn.Name],
		})
	}

	for _, e := range sg.Edges() {
		weight := 0
		if result.Declared.Contains(e[1]) {
			if _, visited := position[e[0]]; visited {
				weight = result.Loads[e[0]]
			}
		}
		g.AddEdge(&Edge{Source: e[0], Target: e[1], Weight: weight})
	}
	for _, name := range sg.SelfLoops() {
		g.AddEdge(&Edge{Source: name, Target: name, Weight: 0})
	}

	return g
}
