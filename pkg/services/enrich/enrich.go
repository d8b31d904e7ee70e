// Package enrich matches parsed menu items against a dish catalog.
package enrich

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"menu-scan/pkg/models"
)

const (
	DefaultThaiThreshold    = 0.8
	DefaultEnglishThreshold = 0.6

	SourceThai    = "thai"
	SourceEnglish = "english"
)

// Matcher finds the catalog dish closest to a menu item.
type Matcher struct {
	dishes           []models.Dish
	thaiThreshold    float64
	englishThreshold float64
	metric           *metrics.SorensenDice
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThresholds sets the minimum similarity (exclusive) for Thai and English matches.
func WithThresholds(thai, english float64) Option {
	return func(m *Matcher) {
		if thai > 0 && thai <= 1 {
			m.thaiThreshold = thai
		}
		if english > 0 && english <= 1 {
			m.englishThreshold = english
		}
	}
}

// NewMatcher creates a matcher over a fixed catalog.
func NewMatcher(dishes []models.Dish, opts ...Option) *Matcher {
	m := &Matcher{
		dishes:           dishes,
		thaiThreshold:    DefaultThaiThreshold,
		englishThreshold: DefaultEnglishThreshold,
		metric:           metrics.NewSorensenDice(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Len returns the catalog size.
func (m *Matcher) Len() int { return len(m.dishes) }

// Match compares the item name with the catalog's Thai names first and falls
// back to comparing english with the English names.
func (m *Matcher) Match(item models.MenuItem, english string) models.EnrichedItem {
	out := models.EnrichedItem{MenuItem: item}

	if dish, score := m.best(item.Name, m.thaiThreshold, func(d models.Dish) []string {
		return []string{d.ThaiScript, d.ThaiName}
	}); dish != nil {
		out.Dish, out.MatchSource, out.MatchConfidence = dish, SourceThai, score
		return out
	}

	if dish, score := m.best(english, m.englishThreshold, func(d models.Dish) []string {
		return []string{d.EnglishName}
	}); dish != nil {
		out.Dish, out.MatchSource, out.MatchConfidence = dish, SourceEnglish, score
	}
	return out
}

// Enrich matches every item. english may be nil or shorter than items.
func (m *Matcher) Enrich(items []models.MenuItem, english []string) []models.EnrichedItem {
	out := make([]models.EnrichedItem, len(items))
	for i, it := range items {
		var en string
		if i < len(english) {
			en = english[i]
		}
		out[i] = m.Match(it, en)
	}
	return out
}

func (m *Matcher) best(name string, threshold float64, fields func(models.Dish) []string) (*models.Dish, float64) {
	query := normalize(name)
	if query == "" {
		return nil, 0
	}

	var best *models.Dish
	bestScore := threshold
	for i := range m.dishes {
		for _, f := range fields(m.dishes[i]) {
			candidate := normalize(f)
			if candidate == "" {
				continue
			}
			if score := strutil.Similarity(query, candidate, m.metric); score > bestScore {
				best, bestScore = &m.dishes[i], score
			}
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestScore
}

var normalizer = strings.NewReplacer(" ", "", "-", "", "_", "", "\t", "")

func normalize(s string) string {
	return normalizer.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// LoadCatalog reads a JSON array of dishes.
func LoadCatalog(r io.Reader) ([]models.Dish, error) {
	var dishes []models.Dish
	if err := json.NewDecoder(r).Decode(&dishes); err != nil {
		return nil, fmt.Errorf("failed to decode dish catalog: %w", err)
	}
	return dishes, nil
}
