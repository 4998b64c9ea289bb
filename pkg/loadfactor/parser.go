package loadfactor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDeclaration is the sentinel wrapped by MalformedDeclarationError
var ErrMalformedDeclaration = errors.New("malformed declaration")

// MalformedDeclarationError reports a declaration that does not split into
// exactly one name and dependency list.
type MalformedDeclarationError struct {
	Index      int    // position of the line in the input
	LineNumber int    // 1-based line in the originating file; Parse sets Index+1
	Line       string // offending line content
}

func (e *MalformedDeclarationError) Error() string {
	return fmt.Sprintf("%s at line %d: %q", ErrMalformedDeclaration, e.LineNumber, e.Line)
}

func (e *MalformedDeclarationError) Unwrap() error { return ErrMalformedDeclaration }

// Declaration is a single parsed "name=dep1|dep2" line
type Declaration struct {
	Name         string
	Dependencies []string
}

// Graph maps a declared service to its dependencies in declaration order
type Graph map[string][]string

// DeclaredNodes is the set of names that appeared on a left-hand side
type DeclaredNodes map[string]struct{}

// Contains reports whether name was declared
func (d DeclaredNodes) Contains(name string) bool {
	_, ok := d[name]
	return ok
}

// ParseDeclaration parses one declaration line.
// Format: name = dep1 | dep2 | ... | depN
func ParseDeclaration(line string) (Declaration, error) {
	parts := strings.Split(line, "=")
	if len(parts) != 2 {
		return Declaration{}, &MalformedDeclarationError{Line: line}
	}

	decl := Declaration{
		Name:         strings.TrimSpace(parts[0]),
		Dependencies: []string{},
	}

	rhs := strings.TrimSpace(parts[1])
	if rhs == "" {
		return decl, nil
	}

	for _, dep := range strings.Split(rhs, "|") {
		decl.Dependencies = append(decl.Dependencies, strings.TrimSpace(dep))
	}
	return decl, nil
}

// Parse converts declaration lines into a dependency graph and the set of
// declared names. A later declaration of the same name replaces the earlier one.
func Parse(declarations []string) (Graph, DeclaredNodes, error) {
	graph := make(Graph, len(declarations))
	declared := make(DeclaredNodes, len(declarations))

	for i, line := range declarations {
		decl, err := ParseDeclaration(line)
		if err != nil {
			var malformed *MalformedDeclarationError
			if errors.As(err, &malformed) {
				malformed.Index = i
				malformed.LineNumber = i + 1
			}
			return nil, nil, err
		}

		declared[decl.Name] = struct{}{}
		graph[decl.Name] = decl.Dependencies
	}

	return graph, declared, nil
}

// EdgeCount returns the number of dependency edges, counting duplicates
func (g Graph) EdgeCount() int {
	n := 0
	for _, deps := range g {
		n += len(deps)
	}
	return n
}
