package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenNormalizesBox(t *testing.T) {
	tok := NewToken("ข้าว", BBox{XMin: 40, XMax: 10, YMin: 30, YMax: 10})

	assert.Equal(t, BBox{XMin: 10, XMax: 40, YMin: 10, YMax: 30}, tok.BBox)
	assert.Equal(t, 25.0, tok.CenterX())
	assert.Equal(t, 20.0, tok.CenterY())
}

func TestTokenFromPolygon(t *testing.T) {
	tok, ok := TokenFromPolygon("60", []Point{{X: 12, Y: 5}, {X: 40, Y: 7}, {X: 41, Y: 25}, {X: 10, Y: 23}})
	require.True(t, ok)
	assert.Equal(t, BBox{XMin: 10, XMax: 41, YMin: 5, YMax: 25}, tok.BBox)
	assert.Equal(t, 15.0, tok.CenterY())

	_, ok = TokenFromPolygon("empty", nil)
	assert.False(t, ok)
}

func TestTokenJSONDerivesCenters(t *testing.T) {
	var tok Token
	require.NoError(t, json.Unmarshal([]byte(`{"text":"a","bbox":{"x_min":0,"x_max":10,"y_min":4,"y_max":8}}`), &tok))
	assert.Equal(t, 6.0, tok.CenterY())

	out, err := json.Marshal(tok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"a","bbox":{"x_min":0,"x_max":10,"y_min":4,"y_max":8}}`, string(out))
}

func TestDocumentRender(t *testing.T) {
	doc := Document{Lines: []Line{
		{Tokens: []Token{NewToken("ผัด", BBox{}), NewToken("ไทย", BBox{})}},
		{Tokens: []Token{NewToken("60", BBox{})}},
	}}

	assert.Equal(t, "ผัดไทย\n60", doc.Render())
	assert.Equal(t, 3, doc.TokenCount())
	assert.False(t, doc.IsEmpty())
	assert.True(t, NoContent.IsEmpty())
	assert.Equal(t, "", NoContent.Render())
}

func TestChunkText(t *testing.T) {
	assert.Equal(t, "a\nb", Chunk{Lines: []string{"a", "b"}}.Text())
}

func TestMenuItemJSON(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		price float64
	}{
		{name: "number", raw: `{"name":"ต้มยำ","price":120}`, price: 120},
		{name: "string with comma", raw: `{"name":"ต้มยำ","price":"1,200"}`, price: 1200},
		{name: "null", raw: `{"name":"ต้มยำ","price":null}`, price: 0},
		{name: "missing", raw: `{"name":"ต้มยำ"}`, price: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var it MenuItem
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &it))
			assert.Equal(t, "ต้มยำ", it.Name)
			assert.Equal(t, tt.price, it.Price)
		})
	}
}

func TestMenuItemKeepsExtraKeys(t *testing.T) {
	var it MenuItem
	require.NoError(t, json.Unmarshal([]byte(`{"name":"ส้มตำ","price":50,"spicy":true}`), &it))
	assert.Equal(t, map[string]any{"spicy": true}, it.Extra)

	out, err := json.Marshal(it)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"ส้มตำ","price":50,"spicy":true}`, string(out))
}

func TestMenuItemRejectsBadPrice(t *testing.T) {
	var it MenuItem
	assert.Error(t, json.Unmarshal([]byte(`{"name":"x","price":"cheap"}`), &it))
	assert.Error(t, json.Unmarshal([]byte(`{"name":"x","price":[1]}`), &it))
}

func TestEnrichedItemJSON(t *testing.T) {
	plain := EnrichedItem{MenuItem: MenuItem{Name: "x", Price: 1}}
	out, err := json.Marshal(plain)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x","price":1,"matchConfidence":0}`, string(out))

	matched := EnrichedItem{
		MenuItem:        MenuItem{Name: "ผัดไทย", Price: 60},
		Dish:            &Dish{EnglishName: "Pad Thai"},
		MatchSource:     "thai",
		MatchConfidence: 1,
	}
	out, err = json.Marshal(matched)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "thai", m["matchSource"])
	assert.Equal(t, "Pad Thai", m["dish"].(map[string]any)["english_name"])
}
