package cycles

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ritzau/load-factors/pkg/graph"
	"gonum.org/v1/gonum/graph/topo"
)

// ErrCycleDetected is returned by Check when the service graph is cyclic
var ErrCycleDetected = errors.New("cycle detected")

// ServiceCycle is a set of services that depend on each other
type ServiceCycle struct {
	Services []string `json:"services"` // sorted
}

func (c ServiceCycle) String() string {
	if len(c.Services) == 1 {
		return c.Services[0] + " -> " + c.Services[0]
	}
	return strings.Join(c.Services, " <-> ")
}

// CycleError lists every cycle found in the graph
type CycleError struct {
	Cycles []ServiceCycle
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = "[" + c.String() + "]"
	}
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(parts, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// FindServiceCycles returns every strongly connected component with more
// than one service, plus every self-referencing service
func FindServiceCycles(sg *graph.ServiceGraph) []ServiceCycle {
	cycles := make([]ServiceCycle, 0)

	for _, scc := range topo.TarjanSCC(sg.Graph()) {
		if len(scc) < 2 {
			continue
		}
		services := make([]string, 0, len(scc))
		for _, n := range scc {
			if node := sg.GetNodeByID(n.ID()); node != nil {
				services = append(services, node.Name)
			}
		}
		sort.Strings(services)
		cycles = append(cycles, ServiceCycle{Services: services})
	}

	for _, name := range sg.SelfLoops() {
		cycles = append(cycles, ServiceCycle{Services: []string{name}})
	}

	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].Services[0] < cycles[j].Services[0]
	})
	return cycles
}

// Check returns a *CycleError when the graph has any cycle
func Check(sg *graph.ServiceGraph) error {
	if cycles := FindServiceCycles(sg); len(cycles) > 0 {
		return &CycleError{Cycles: cycles}
	}
	return nil
}
