package graph

import (
	"sort"

	"github.com/ritzau/load-factors/pkg/loadfactor"
	"gonum.org/v1/gonum/graph/simple"
)

// ServiceNode is a service in the dependency graph
type ServiceNode struct {
	Name     string
	Declared bool // appeared on the left-hand side of a declaration
}

// ServiceGraph is a gonum view of parsed declarations. Parallel edges are
// collapsed; self-references are tracked separately because gonum's simple
// graphs reject self edges.
type ServiceGraph struct {
	graph     *simple.DirectedGraph
	nodes     map[string]*ServiceNode
	ids       map[string]int64
	names     []string // indexed by graph ID
	selfLoops map[string]bool
}

// NewServiceGraph creates an empty service graph
func NewServiceGraph() *ServiceGraph {
	return &ServiceGraph{
		graph:     simple.NewDirectedGraph(),
		nodes:     make(map[string]*ServiceNode),
		ids:       make(map[string]int64),
		selfLoops: make(map[string]bool),
	}
}

// AddService adds a service to the graph
func (sg *ServiceGraph) AddService(name string, declared bool) {
	if node, exists := sg.nodes[name]; exists {
		node.Declared = node.Declared || declared
		return
	}

	id := int64(len(sg.names))
	sg.nodes[name] = &ServiceNode{Name: name, Declared: declared}
	sg.ids[name] = id
	sg.names = append(sg.names, name)
	sg.graph.AddNode(simple.Node(id))
}

// AddDependency adds an edge from source to target, creating undeclared
// nodes as needed
func (sg *ServiceGraph) AddDependency(source, target string) {
	sg.AddService(source, false)
	sg.AddService(target, false)

	if source == target {
		sg.selfLoops[source] = true
		return
	}

	from, to := sg.ids[source], sg.ids[target]
	if !sg.graph.HasEdgeFromTo(from, to) {
		sg.graph.SetEdge(sg.graph.NewEdge(sg.graph.Node(from), sg.graph.Node(to)))
	}
}

// GetNode returns a service node by name
func (sg *ServiceGraph) GetNode(name string) (*ServiceNode, bool) {
	node, exists := sg.nodes[name]
	return node, exists
}

// GetNodeByID returns a service node by its graph ID
func (sg *ServiceGraph) GetNodeByID(id int64) *ServiceNode {
	if id < 0 || id >= int64(len(sg.names)) {
		return nil
	}
	return sg.nodes[sg.names[id]]
}

// Graph returns the underlying directed graph
func (sg *ServiceGraph) Graph() *simple.DirectedGraph {
	return sg.graph
}

// SelfLoops returns services that list themselves as a dependency
func (sg *ServiceGraph) SelfLoops() []string {
	loops := make([]string, 0, len(sg.selfLoops))
	for name := range sg.selfLoops {
		loops = append(loops, name)
	}
	sort.Strings(loops)
	return loops
}

// Nodes returns all service nodes in insertion order
func (sg *ServiceGraph) Nodes() []*ServiceNode {
	nodes := make([]*ServiceNode, 0, len(sg.names))
	for _, name := range sg.names {
		nodes = append(nodes, sg.nodes[name])
	}
	return nodes
}

// Edges returns all distinct dependency edges as [source, target] pairs,
// sorted for stable output. Self-loops are not included.
func (sg *ServiceGraph) Edges() [][2]string {
	var edges [][2]string

	iter := sg.graph.Edges()
	for iter.Next() {
		edge := iter.Edge()
		edges = append(edges, [2]string{
			sg.names[edge.From().ID()],
			sg.names[edge.To().ID()],
		})
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	return edges
}

// GetDependencies returns the distinct services that name depends on
func (sg *ServiceGraph) GetDependencies(name string) []string {
	id, exists := sg.ids[name]
	if !exists {
		return nil
	}

	var deps []string
	iter := sg.graph.From(id)
	for iter.Next() {
		deps = append(deps, sg.names[iter.Node().ID()])
	}
	if sg.selfLoops[name] {
		deps = append(deps, name)
	}
	sort.Strings(deps)
	return deps
}

// BuildServiceGraph converts parsed declarations into a service graph
func BuildServiceGraph(g loadfactor.Graph, declared loadfactor.DeclaredNodes) *ServiceGraph {
	sg := NewServiceGraph()

	// Sorted so graph IDs do not depend on map iteration order
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sg.AddService(name, declared.Contains(name))
	}
	for _, name := range names {
		for _, dep := range g[name] {
			sg.AddDependency(name, dep)
		}
	}

	return sg
}
