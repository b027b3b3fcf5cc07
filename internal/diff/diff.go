// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"
)

// Line represents a single line in a diff with its type and content.
// OldNum and NewNum are 1-based; 0 means the line is absent on that side.
type Line struct {
	Type    LineType
	Content string
	OldNum  int
	NewNum  int
}

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// DiffResult contains the complete diff information
type DiffResult struct {
	Hunks  []Hunk
	Binary bool
	Stats  struct {
		Additions int
		Deletions int
		Changes   int
	}
}

// Hunk represents a continuous section of changes
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Engine provides diffing capabilities
type Engine struct {
	contextLines int
}

// NewEngine creates a new diff engine with specified context lines
func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{
		contextLines: contextLines,
	}
}

// Diff generates a line-by-line diff between two contents
func (e *Engine) Diff(oldContent, newContent []byte) (*DiffResult, error) {
	result := &DiffResult{}
	if isBinary(oldContent) || isBinary(newContent) {
		result.Binary = !bytes.Equal(oldContent, newContent)
		return result, nil
	}

	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	script := editScript(oldLines, newLines)
	result.Hunks = e.groupHunks(script)

	for _, hunk := range result.Hunks {
		for _, line := range hunk.Lines {
			switch line.Type {
			case Addition:
				result.Stats.Additions++
			case Deletion:
				result.Stats.Deletions++
			}
		}
	}
	result.Stats.Changes = result.Stats.Additions + result.Stats.Deletions

	return result, nil
}

// groupHunks cuts the edit script into hunks, merging changes separated by
// at most twice the context length.
func (e *Engine) groupHunks(script []Line) []Hunk {
	var hunks []Hunk
	n := len(script)

	for i := 0; i < n; {
		if script[i].Type == Context {
			i++
			continue
		}

		start := max(0, i-e.contextLines)
		end := i
		for end < n {
			if script[end].Type != Context {
				end++
				continue
			}
			run := end
			for run < n && script[run].Type == Context {
				run++
			}
			if run == n || run-end > 2*e.contextLines {
				break
			}
			end = run
		}
		stop := min(n, end+e.contextLines)

		hunks = append(hunks, newHunk(script, start, stop))
		i = stop
	}
	return hunks
}

func newHunk(script []Line, start, stop int) Hunk {
	lines := script[start:stop]
	h := Hunk{Lines: append([]Line(nil), lines...)}
	for _, l := range lines {
		if l.OldNum > 0 {
			if h.OldLines == 0 {
				h.OldStart = l.OldNum
			}
			h.OldLines++
		}
		if l.NewNum > 0 {
			if h.NewLines == 0 {
				h.NewStart = l.NewNum
			}
			h.NewLines++
		}
	}

	// an empty side is anchored at the last line before the hunk
	for i := start - 1; i >= 0 && (h.OldLines == 0 && h.OldStart == 0 || h.NewLines == 0 && h.NewStart == 0); i-- {
		if h.OldLines == 0 && h.OldStart == 0 && script[i].OldNum > 0 {
			h.OldStart = script[i].OldNum
		}
		if h.NewLines == 0 && h.NewStart == 0 && script[i].NewNum > 0 {
			h.NewStart = script[i].NewNum
		}
	}
	return h
}

// Format returns a unified-style representation of the diff
func (r *DiffResult) Format() string {
	if r.Binary {
		return "binary content differs\n"
	}

	var buf bytes.Buffer
	for _, hunk := range r.Hunks {
		fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n",
			hunk.OldStart, hunk.OldLines,
			hunk.NewStart, hunk.NewLines)

		for _, line := range hunk.Lines {
			buf.WriteString(line.Type.Prefix())
			buf.WriteString(line.Content)
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

func (t LineType) Prefix() string {
	switch t {
	case Addition:
		return "+"
	case Deletion:
		return "-"
	default:
		return " "
	}
}
