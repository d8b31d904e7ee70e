package models

import (
	"encoding/json"
	"math"
)

// BBox is an axis-aligned bounding box in image pixel coordinates.
type BBox struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// Point is a single polygon vertex as reported by an OCR provider.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Token is one OCR-detected text fragment with its position.
// Centers are derived once at construction and never change.
type Token struct {
	Text string
	BBox BBox

	centerX float64
	centerY float64
}

// NewToken builds a token and derives its center.
func NewToken(text string, box BBox) Token {
	if box.XMax < box.XMin {
		box.XMin, box.XMax = box.XMax, box.XMin
	}
	if box.YMax < box.YMin {
		box.YMin, box.YMax = box.YMax, box.YMin
	}
	return Token{
		Text:    text,
		BBox:    box,
		centerX: (box.XMin + box.XMax) / 2,
		centerY: (box.YMin + box.YMax) / 2,
	}
}

// TokenFromPolygon builds a token from a bounding polygon, usually 4 vertices.
// The second return value is false when the polygon has no vertices.
func TokenFromPolygon(text string, vertices []Point) (Token, bool) {
	if len(vertices) == 0 {
		return Token{}, false
	}
	box := BBox{
		XMin: math.Inf(1),
		XMax: math.Inf(-1),
		YMin: math.Inf(1),
		YMax: math.Inf(-1),
	}
	for _, v := range vertices {
		box.XMin = math.Min(box.XMin, v.X)
		box.XMax = math.Max(box.XMax, v.X)
		box.YMin = math.Min(box.YMin, v.Y)
		box.YMax = math.Max(box.YMax, v.Y)
	}
	return NewToken(text, box), true
}

// CenterX returns the horizontal center of the bounding box.
func (t Token) CenterX() float64 { return t.centerX }

// CenterY returns the vertical center of the bounding box.
func (t Token) CenterY() float64 { return t.centerY }

type tokenJSON struct {
	Text string `json:"text"`
	BBox BBox   `json:"bbox"`
}

// MarshalJSON encodes the token without its derived fields.
func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenJSON{Text: t.Text, BBox: t.BBox})
}

// UnmarshalJSON decodes a token and re-derives its center.
func (t *Token) UnmarshalJSON(data []byte) error {
	var raw tokenJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = NewToken(raw.Text, raw.BBox)
	return nil
}
