package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ritzau/load-factors/pkg/analysis/api"
)

// MaxLineLength bounds a single declaration line
const MaxLineLength = 16 << 20

// ReadFile reads declaration lines from a file, one "name=dep1|dep2" per line
func ReadFile(path string) ([]api.Line, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening declarations: %w", err)
	}
	defer func() { _ = file.Close() }()

	lines, err := ReadLines(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}

// ReadLines returns the non-blank lines of r with their 1-based line numbers.
// Lines are not otherwise altered so that malformed declarations still reach
// the parser verbatim.
func ReadLines(r io.Reader) ([]api.Line, error) {
	var lines []api.Line

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineLength)
	number := 0
	for scanner.Scan() {
		number++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, api.Line{Number: number, Text: line})
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("line %d exceeds %d bytes: %w", number+1, MaxLineLength, err)
		}
		return nil, err
	}
	return lines, nil
}

// FileSource reads declarations from a file on every call
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return s.Path }

func (s *FileSource) Declarations(ctx context.Context) ([]api.Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadFile(s.Path)
}

// StaticSource serves a fixed set of declarations
type StaticSource struct {
	Label string
	Lines []string
}

func (s *StaticSource) Name() string { return s.Label }

// Declarations numbers the lines by their position
func (s *StaticSource) Declarations(ctx context.Context) ([]api.Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lines := make([]api.Line, len(s.Lines))
	for i, text := range s.Lines {
		lines[i] = api.Line{Number: i + 1, Text: text}
	}
	return lines, nil
}
