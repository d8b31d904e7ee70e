package models

import "strings"

// Line is a group of tokens sharing one vertical cluster, ordered left to right.
type Line struct {
	RepresentativeY float64
	Tokens          []Token
}

// Text concatenates the token texts without separators.
func (l Line) Text() string {
	var b strings.Builder
	for _, t := range l.Tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// Document is the reconstructed page: lines ordered top to bottom.
type Document struct {
	Lines []Line
}

// NoContent is returned when there was nothing to reconstruct.
var NoContent = Document{}

// IsEmpty reports whether the document carries no lines.
func (d Document) IsEmpty() bool {
	return len(d.Lines) == 0
}

// Texts returns the rendered text of each line in order.
func (d Document) Texts() []string {
	out := make([]string, len(d.Lines))
	for i, l := range d.Lines {
		out[i] = l.Text()
	}
	return out
}

// Render joins line texts with newlines.
func (d Document) Render() string {
	return strings.Join(d.Texts(), "\n")
}

// TokenCount returns the number of tokens across all lines.
func (d Document) TokenCount() int {
	n := 0
	for _, l := range d.Lines {
		n += len(l.Tokens)
	}
	return n
}
