package api

import (
	"context"
)

// Line is one declaration together with its 1-based position in the
// underlying input, so errors can point at the physical line.
type Line struct {
	Number int
	Text   string
}

// Source supplies declaration lines for a computation.
// Implementations wrap where the lines come from (a file, CLI arguments, a
// request body) so the runner does not care.
type Source interface {
	// Name identifies the source in logs and events (e.g. a file path).
	Name() string

	// Declarations returns the raw "name=dep1|dep2" lines.
	// It should respect the context for cancellation.
	Declarations(ctx context.Context) ([]Line, error)
}

// Texts strips line numbers
func Texts(lines []Line) []string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return texts
}
