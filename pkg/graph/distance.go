package graph

import (
	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/traverse"
)

// Unreachable is the distance reported for services not reachable from the origin
const Unreachable = -1

// Distances returns the number of dependency hops from origin to every
// service, following edges in dependency direction. Services that cannot be
// reached get Unreachable. An unknown origin leaves every service unreachable.
func (sg *ServiceGraph) Distances(origin string) map[string]int {
	distances := make(map[string]int, len(sg.names))
	for _, name := range sg.names {
		distances[name] = Unreachable
	}

	id, ok := sg.ids[origin]
	if !ok {
		return distances
	}

	var bfs traverse.BreadthFirst
	bfs.Walk(sg.graph, sg.graph.Node(id), func(n gonum.Node, depth int) bool {
		distances[sg.names[n.ID()]] = depth
		return false
	})

	return distances
}
