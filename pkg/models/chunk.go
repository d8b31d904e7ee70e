package models

import "strings"

// Chunk is a contiguous run of document lines processed independently downstream.
type Chunk struct {
	Index int
	Lines []string
}

// Text joins the chunk's lines with newlines.
func (c Chunk) Text() string {
	return strings.Join(c.Lines, "\n")
}

// DeskewResult is the outcome of the deskew engine for one image.
type DeskewResult struct {
	CorrectedImage []byte
	AngleDegrees   float64
	Applied        bool
}
