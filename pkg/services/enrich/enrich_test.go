package enrich

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menu-scan/pkg/models"
)

const catalogJSON = `[
	{"thai_name":"pad thai","thai_script":"ผัดไทย","english_name":"Pad Thai","region":"central","category":"noodles"},
	{"thai_name":"tom yum goong","thai_script":"ต้มยำกุ้ง","english_name":"Tom Yum Goong","region":"central","category":"soup"},
	{"thai_name":"khao pad","thai_script":"ข้าวผัด","english_name":"Fried Rice","region":"central","category":"rice"}
]`

func catalog(t *testing.T) []models.Dish {
	t.Helper()
	dishes, err := LoadCatalog(strings.NewReader(catalogJSON))
	require.NoError(t, err)
	require.Len(t, dishes, 3)
	return dishes
}

func TestMatchThaiExact(t *testing.T) {
	m := NewMatcher(catalog(t))

	got := m.Match(models.MenuItem{Name: "ต้มยำกุ้ง", Price: 150}, "")

	require.NotNil(t, got.Dish)
	assert.Equal(t, "Tom Yum Goong", got.Dish.EnglishName)
	assert.Equal(t, SourceThai, got.MatchSource)
	assert.InDelta(t, 1.0, got.MatchConfidence, 1e-9)
	assert.Equal(t, 150.0, got.Price)
}

func TestMatchFallsBackToEnglish(t *testing.T) {
	m := NewMatcher(catalog(t))

	got := m.Match(models.MenuItem{Name: "Khao Phat"}, "fried-rice")

	require.NotNil(t, got.Dish)
	assert.Equal(t, "khao pad", got.Dish.ThaiName)
	assert.Equal(t, SourceEnglish, got.MatchSource)
	assert.Greater(t, got.MatchConfidence, DefaultEnglishThreshold)
}

func TestMatchNothingClose(t *testing.T) {
	m := NewMatcher(catalog(t))

	got := m.Match(models.MenuItem{Name: "ส้มตำ"}, "papaya salad")

	assert.Nil(t, got.Dish)
	assert.Empty(t, got.MatchSource)
	assert.Zero(t, got.MatchConfidence)
}

func TestEnrichAlignsEnglishNames(t *testing.T) {
	m := NewMatcher(catalog(t))

	out := m.Enrich([]models.MenuItem{{Name: "ผัดไทย"}, {Name: "unknown"}}, []string{"Pad Thai"})

	require.Len(t, out, 2)
	require.NotNil(t, out[0].Dish)
	assert.Equal(t, "Pad Thai", out[0].Dish.EnglishName)
	assert.Nil(t, out[1].Dish)
}

func TestWithThresholds(t *testing.T) {
	m := NewMatcher(nil, WithThresholds(0.9, 2))
	assert.Equal(t, 0.9, m.thaiThreshold)
	assert.Equal(t, DefaultEnglishThreshold, m.englishThreshold)
	assert.Zero(t, m.Len())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "tomyumgoong", normalize("  Tom-Yum_Goong "))
}

func TestLoadCatalogRejectsGarbage(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader("{"))
	assert.Error(t, err)
}
