package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/ritzau/load-factors/pkg/cycles"
	"github.com/ritzau/load-factors/pkg/loadfactor"
)

// Report is everything printed for one computation
type Report struct {
	Source string
	Result *loadfactor.Result
	Cycles []cycles.ServiceCycle
}

// jsonReport is the --format=json shape
type jsonReport struct {
	Source    string                 `json:"source,omitempty"`
	Entry     string                 `json:"entry"`
	Order     []string               `json:"order"`
	Loads     loadfactor.LoadMap     `json:"loads"`
	Ranked    []loadfactor.LoadEntry `json:"ranked"`
	Unreached []string               `json:"unreached,omitempty"`
	Cycles    []string               `json:"cycles,omitempty"`
}

// PrintReport writes a colored, human-readable load-factor report
func PrintReport(w io.Writer, r Report) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	res := r.Result

	bold.Fprintln(w, "Top-Down Load Factors")
	bold.Fprintln(w, "=====================")
	if r.Source != "" {
		fmt.Fprintf(w, "Source: %s\n", r.Source)
	}
	fmt.Fprintf(w, "Entry point: ")
	cyan.Fprintln(w, res.Entry)
	fmt.Fprintf(w, "Traversal order: %s\n", strings.Join(res.Order, " -> "))
	fmt.Fprintln(w)

	ranked := res.Loads.Sorted()
	width := 0
	for _, e := range ranked {
		if len(e.Name) > width {
			width = len(e.Name)
		}
	}

	for _, e := range ranked {
		c := green
		if e.Name == res.Entry {
			c = cyan
		}
		c.Fprintf(w, "  %-*s %d\n", width, e.Name, e.Load)
	}
	fmt.Fprintln(w)

	if len(res.Unreached) > 0 {
		yellow.Fprintf(w, "Not reached from %s: %s\n", res.Entry, strings.Join(res.Unreached, ", "))
	}

	if len(r.Cycles) > 0 {
		red.Fprintf(w, "Cycles (%d), load factors may be incomplete:\n", len(r.Cycles))
		for _, c := range r.Cycles {
			red.Fprintf(w, "  %s\n", c)
		}
	}

	summary := green
	if len(res.Unreached) > 0 || len(r.Cycles) > 0 {
		summary = yellow
	}
	summary.Fprintf(w, "Summary: %d of %d declared services loaded\n",
		countDeclared(res), len(res.Declared))
}

// WriteJSON writes the report as indented JSON
func WriteJSON(w io.Writer, r Report) error {
	out := jsonReport{
		Source:    r.Source,
		Entry:     r.Result.Entry,
		Order:     r.Result.Order,
		Loads:     r.Result.Loads,
		Ranked:    r.Result.Loads.Sorted(),
		Unreached: r.Result.Unreached,
	}
	for _, c := range r.Cycles {
		out.Cycles = append(out.Cycles, c.String())
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

func countDeclared(res *loadfactor.Result) int {
	n := 0
	for name := range res.Loads {
		if res.Declared.Contains(name) {
			n++
		}
	}
	return n
}
