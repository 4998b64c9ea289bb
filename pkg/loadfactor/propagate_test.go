package loadfactor

import (
	"reflect"
	"testing"
)

var sampleServices = []string{
	"logging=",
	"user=logging",
	"implementations=user|foobar",
	"cores=implementations|user|foobar",
	"dashboard=cores|implementations|foobar|user",
}

func TestComputeTopDownSample(t *testing.T) {
	loads, err := ComputeTopDown(sampleServices, "dashboard")
	if err != nil {
		t.Fatalf("ComputeTopDown() error = %v", err)
	}

	// user is reached from dashboard (1), cores (1) and implementations (2)
	want := LoadMap{
		"dashboard":       1,
		"cores":           1,
		"implementations": 2,
		"user":            4,
		"logging":         4,
	}
	if !reflect.DeepEqual(loads, want) {
		t.Errorf("Expected %v, got %v", want, loads)
	}
	if _, ok := loads["foobar"]; ok {
		t.Error("Undeclared foobar should not appear in the result")
	}
}

func TestTraversalOrderSample(t *testing.T) {
	graph, _, err := Parse(sampleServices)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	order := TraversalOrder(graph, "dashboard")
	want := []string{"dashboard", "cores", "implementations", "user", "foobar", "logging"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("Expected order %v, got %v", want, order)
	}
}

func TestComputeTopDownMissingEntryPoint(t *testing.T) {
	loads, err := ComputeTopDown(sampleServices, "nope")
	if err != nil {
		t.Fatalf("ComputeTopDown() error = %v", err)
	}

	want := LoadMap{"nope": 1}
	if !reflect.DeepEqual(loads, want) {
		t.Errorf("Expected %v, got %v", want, loads)
	}
}

func TestComputeTopDownMalformed(t *testing.T) {
	_, err := ComputeTopDown([]string{"a=b", "oops"}, "a")
	if err == nil {
		t.Fatal("Expected malformed declaration error")
	}
}

func TestComputeTopDownDuplicateEdges(t *testing.T) {
	loads, err := ComputeTopDown([]string{"a=b|b", "b=c", "c="}, "a")
	if err != nil {
		t.Fatalf("ComputeTopDown() error = %v", err)
	}

	want := LoadMap{"a": 1, "b": 2, "c": 2}
	if !reflect.DeepEqual(loads, want) {
		t.Errorf("Expected %v, got %v", want, loads)
	}
}

func TestComputeTopDownEntryWithIncomingEdges(t *testing.T) {
	// The entry point is seeded even though x points at it
	loads, err := ComputeTopDown([]string{"x=a", "a=b", "b="}, "a")
	if err != nil {
		t.Fatalf("ComputeTopDown() error = %v", err)
	}

	want := LoadMap{"a": 1, "b": 1}
	if !reflect.DeepEqual(loads, want) {
		t.Errorf("Expected %v, got %v", want, loads)
	}
}

func TestComputeTopDownExternalPredecessorBlocksNode(t *testing.T) {
	// c is also required by x, which is unreachable from a, so c's indegree
	// never reaches zero and d is never visited.
	loads, err := ComputeTopDown([]string{"a=c", "x=c", "c=d", "d="}, "a")
	if err != nil {
		t.Fatalf("ComputeTopDown() error = %v", err)
	}

	want := LoadMap{"a": 1, "c": 1}
	if !reflect.DeepEqual(loads, want) {
		t.Errorf("Expected %v, got %v", want, loads)
	}
}

func TestComputeTopDownCycleDoesNotPanic(t *testing.T) {
	loads, err := ComputeTopDown([]string{"a=b", "b=c", "c=b"}, "a")
	if err != nil {
		t.Fatalf("ComputeTopDown() error = %v", err)
	}
	if loads["a"] != 1 {
		t.Errorf("Expected entry load 1, got %d", loads["a"])
	}
}

func TestComputeTopDownAdditivity(t *testing.T) {
	lines := []string{
		"root=a|b|c",
		"a=d|e",
		"b=d",
		"c=e|d",
		"d=f",
		"e=f|ext",
		"f=",
	}
	graph, declared, err := Parse(lines)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	loads := Propagate(graph, declared, "root")
	for name, load := range loads {
		if name == "root" {
			continue
		}
		sum := 0
		for src, deps := range graph {
			for _, dep := range deps {
				if dep == name {
					sum += loads[src]
				}
			}
		}
		if load != sum {
			t.Errorf("%s: expected load %d (sum of in-edges), got %d", name, sum, load)
		}
	}

	if loads["f"] != 5 {
		t.Errorf("Expected f load 5, got %d", loads["f"])
	}
	if _, ok := loads["ext"]; ok {
		t.Error("Undeclared ext should not appear in the result")
	}
}

func TestAnalyze(t *testing.T) {
	lines := append([]string{"orphan=logging"}, sampleServices...)

	result, err := Analyze(lines, "dashboard")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if result.Entry != "dashboard" {
		t.Errorf("Expected entry dashboard, got %s", result.Entry)
	}
	if !reflect.DeepEqual(result.Unreached, []string{"orphan"}) {
		t.Errorf("Expected only orphan to be unreached, got %v", result.Unreached)
	}

	// orphan keeps logging's indegree above zero, so logging is loaded by
	// user but never visited itself
	for _, name := range result.Order {
		if name == "logging" {
			t.Error("logging should not be in the traversal order")
		}
	}
	if result.Loads["logging"] != 4 {
		t.Errorf("Expected logging load 4, got %d", result.Loads["logging"])
	}
}

func TestLoadMapSorted(t *testing.T) {
	loads := LoadMap{"b": 2, "a": 2, "c": 5, "d": 1}

	got := loads.Sorted()
	want := []LoadEntry{{"c", 5}, {"a", 2}, {"b", 2}, {"d", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
