// Package chunker splits reconstructed text into bounded, line-aligned chunks
// and merges per-chunk structuring results back into one ordered result.
package chunker

import (
	"strings"
	"unicode/utf8"

	"menu-scan/pkg/models"
)

// DefaultMaxLength is the default chunk length in characters.
const DefaultMaxLength = 1500

// Planner splits text into chunks on line boundaries.
type Planner struct {
	maxLength int
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithMaxLength sets the chunk length bound in characters.
func WithMaxLength(n int) PlannerOption {
	return func(p *Planner) {
		if n > 0 {
			p.maxLength = n
		}
	}
}

// NewPlanner creates a Planner with the given options.
func NewPlanner(opts ...PlannerOption) *Planner {
	p := &Planner{maxLength: DefaultMaxLength}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxLength returns the configured bound.
func (p *Planner) MaxLength() int {
	return p.maxLength
}

// Plan splits text on newlines and packs consecutive lines into chunks whose
// length, separators included, stays within the bound. A line longer than the
// bound gets a chunk of its own. Empty text yields no chunks.
func (p *Planner) Plan(text string) []models.Chunk {
	if text == "" {
		return nil
	}
	return p.pack(strings.Split(text, "\n"))
}

// PlanDocument plans a reconstructed document. The no-content document yields
// no chunks.
func (p *Planner) PlanDocument(doc models.Document) []models.Chunk {
	if doc.IsEmpty() {
		return nil
	}
	return p.Plan(doc.Render())
}

func (p *Planner) pack(lines []string) []models.Chunk {
	var chunks []models.Chunk
	var cur []string
	curLen := 0

	for _, line := range lines {
		n := utf8.RuneCountInString(line)
		next := n
		if len(cur) > 0 {
			next = curLen + 1 + n
		}
		if len(cur) > 0 && next > p.maxLength {
			chunks = append(chunks, models.Chunk{Index: len(chunks), Lines: cur})
			cur, curLen = nil, 0
			next = n
		}
		cur = append(cur, line)
		curLen = next
	}
	if len(cur) > 0 {
		chunks = append(chunks, models.Chunk{Index: len(chunks), Lines: cur})
	}
	return chunks
}

// Join reassembles chunks into the text they were planned from.
func Join(chunks []models.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text()
	}
	return strings.Join(parts, "\n")
}
