package loadfactor

import (
	"sort"

	"github.com/ritzau/load-factors/pkg/logging"
)

// LoadMap maps a service name to its accumulated load factor
type LoadMap map[string]int

// LoadEntry is a single (service, load) pair
type LoadEntry struct {
	Name string `json:"name"`
	Load int    `json:"load"`
}

// Sorted returns the entries ordered by descending load, then by name
func (m LoadMap) Sorted() []LoadEntry {
	entries := make([]LoadEntry, 0, len(m))
	for name, load := range m {
		entries = append(entries, LoadEntry{Name: name, Load: load})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Load != entries[j].Load {
			return entries[i].Load > entries[j].Load
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// TraversalOrder expands a FIFO frontier from the entry point. A dependency is
// enqueued once its indegree, counted over the whole graph, drops to zero.
// The entry point is always the seed regardless of its own indegree.
func TraversalOrder(g Graph, entryPoint string) []string {
	indegree := make(map[string]int)
	for _, deps := range g {
		for _, dep := range deps {
			indegree[dep]++
		}
	}

	queue := []string{entryPoint}
	order := make([]string, 0, len(g))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dep := range g[node] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	return order
}

// Propagate accumulates load factors along the traversal order. The entry
// point starts at 1; undeclared dependencies are skipped and never appear in
// the result.
func Propagate(g Graph, declared DeclaredNodes, entryPoint string) LoadMap {
	return propagate(g, declared, entryPoint, TraversalOrder(g, entryPoint))
}

func propagate(g Graph, declared DeclaredNodes, entryPoint string, order []string) LoadMap {
	load := LoadMap{entryPoint: 1}
	for _, node := range order {
		for _, dep := range g[node] {
			if !declared.Contains(dep) {
				continue
			}
			load[dep] += load[node]
		}
	}
	return load
}

// ComputeTopDown parses the declarations and returns the load factor of every
// service reached from entryPoint. The only error is a malformed declaration.
func ComputeTopDown(declarations []string, entryPoint string) (LoadMap, error) {
	graph, declared, err := Parse(declarations)
	if err != nil {
		return nil, err
	}
	return Propagate(graph, declared, entryPoint), nil
}

// Result is a load-factor computation together with the data needed to
// explain it.
type Result struct {
	Entry     string        `json:"entry"`
	Order     []string      `json:"order"`
	Loads     LoadMap       `json:"loads"`
	Unreached []string      `json:"unreached,omitempty"` // declared but never loaded
	Graph     Graph         `json:"-"`
	Declared  DeclaredNodes `json:"-"`
}

// Analyze is ComputeTopDown that keeps the parsed graph and traversal order
func Analyze(declarations []string, entryPoint string) (*Result, error) {
	graph, declared, err := Parse(declarations)
	if err != nil {
		return nil, err
	}

	order := TraversalOrder(graph, entryPoint)
	loads := propagate(graph, declared, entryPoint, order)

	var unreached []string
	for name := range declared {
		if _, ok := loads[name]; !ok {
			unreached = append(unreached, name)
		}
	}
	sort.Strings(unreached)

	logging.Debug("computed load factors",
		"entry", entryPoint,
		"declared", len(declared),
		"edges", graph.EdgeCount(),
		"ordered", len(order),
		"loaded", len(loads),
		"unreached", len(unreached))

	return &Result{
		Entry:     entryPoint,
		Order:     order,
		Loads:     loads,
		Unreached: unreached,
		Graph:     graph,
		Declared:  declared,
	}, nil
}
