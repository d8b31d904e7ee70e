package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// MenuItem is one structured record produced for a chunk of menu text.
// Name and Price are always present; any other keys the structurer returns
// are kept in Extra.
type MenuItem struct {
	Name  string
	Price float64
	Extra map[string]any
}

// MarshalJSON flattens Extra next to name and price.
func (m MenuItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["name"] = m.Name
	out["price"] = m.Price
	return json.Marshal(out)
}

// UnmarshalJSON accepts a flexible object with at least a name.
func (m *MenuItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	item := MenuItem{}
	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &item.Name); err != nil {
			return fmt.Errorf("name: %w", err)
		}
	}
	if v, ok := raw["price"]; ok {
		price, err := parsePrice(v)
		if err != nil {
			return fmt.Errorf("price: %w", err)
		}
		item.Price = price
	}
	for k, v := range raw {
		if k == "name" || k == "price" {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		if item.Extra == nil {
			item.Extra = make(map[string]any)
		}
		item.Extra[k] = val
	}
	*m = item
	return nil
}

func parsePrice(raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		if string(raw) == "null" {
			return 0, nil
		}
		return 0, fmt.Errorf("unsupported value %s", string(raw))
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// TranslatedItem pairs a translated name with the original one.
type TranslatedItem struct {
	Name         string  `json:"name"`
	OriginalName string  `json:"originalName"`
	Price        float64 `json:"price"`
}

// ScanRecord is a persisted result of one scan request.
type ScanRecord struct {
	gorm.Model
	RequestID     string `gorm:"uniqueIndex;size:36"`
	DeskewAngle   float64
	DeskewApplied bool
	OCRProvider   string
	Text          string
	ItemsJSON     string `gorm:"type:text"`
	ChunkCount    int
	FailedChunks  int
}

// Dish is a catalog entry used to enrich parsed menu items.
type Dish struct {
	gorm.Model
	ThaiName    string `json:"thai_name"`
	ThaiScript  string `json:"thai_script"`
	EnglishName string `json:"english_name"`
	Description string `json:"description"`
	Region      string `json:"region"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url"`
	Source      string `json:"source"`
}

// EnrichedItem is a menu item with the catalog dish it matched, if any.
type EnrichedItem struct {
	MenuItem
	Dish            *Dish   `json:"dish,omitempty"`
	MatchSource     string  `json:"matchSource,omitempty"`
	MatchConfidence float64 `json:"matchConfidence"`
}

// MarshalJSON keeps the item fields flat and adds the match data.
func (e EnrichedItem) MarshalJSON() ([]byte, error) {
	base, err := e.MenuItem.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(base, &out); err != nil {
		return nil, err
	}
	if e.Dish != nil {
		out["dish"] = e.Dish
		out["matchSource"] = e.MatchSource
	}
	out["matchConfidence"] = e.MatchConfidence
	return json.Marshal(out)
}
