package chunker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menu-scan/pkg/models"
)

func TestNewPlanner(t *testing.T) {
	assert.Equal(t, DefaultMaxLength, NewPlanner().MaxLength())
	assert.Equal(t, 40, NewPlanner(WithMaxLength(40)).MaxLength())
	assert.Equal(t, DefaultMaxLength, NewPlanner(WithMaxLength(0)).MaxLength())
}

func TestPlanRoundTripAndBound(t *testing.T) {
	texts := []string{
		"one line",
		"ข้าวผัด 60\nต้มยำกุ้ง 120\nผัดไทย 80",
		"a\n\nb\n\n\nc",
		"trailing newline\n",
		"\nleading newline",
		strings.Repeat("menu item 45\n", 50) + "last",
		"short\n" + strings.Repeat("x", 90) + "\nshort again",
	}
	lengths := []int{1, 5, 12, 30, 64, 1500}

	for _, text := range texts {
		for _, limit := range lengths {
			t.Run(fmt.Sprintf("%d/%q", limit, firstRunes(text, 12)), func(t *testing.T) {
				chunks := NewPlanner(WithMaxLength(limit)).Plan(text)

				assert.Equal(t, text, Join(chunks))
				for i, c := range chunks {
					assert.Equal(t, i, c.Index)
					require.NotEmpty(t, c.Lines)
					if len(c.Lines) > 1 {
						assert.LessOrEqual(t, utf8.RuneCountInString(c.Text()), limit)
					}
				}
			})
		}
	}
}

func TestPlanKeepsOversizedLineAlone(t *testing.T) {
	long := strings.Repeat("ก", 30)
	chunks := NewPlanner(WithMaxLength(10)).Plan("ab\n" + long + "\ncd")

	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"ab"}, chunks[0].Lines)
	assert.Equal(t, []string{long}, chunks[1].Lines)
	assert.Equal(t, []string{"cd"}, chunks[2].Lines)
}

func TestPlanCountsRunesNotBytes(t *testing.T) {
	// Each Thai line is 3 runes but 9 bytes; two lines plus a separator fit in 7.
	chunks := NewPlanner(WithMaxLength(7)).Plan("กขค\nงจฉ")
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"กขค", "งจฉ"}, chunks[0].Lines)
}

func TestPlanEmpty(t *testing.T) {
	p := NewPlanner()
	assert.Empty(t, p.Plan(""))
	assert.Empty(t, p.PlanDocument(models.NoContent))
}

func TestPlanDocument(t *testing.T) {
	doc := models.Document{Lines: []models.Line{
		{Tokens: []models.Token{models.NewToken("ผัดไทย", models.BBox{}), models.NewToken("60", models.BBox{})}},
		{Tokens: []models.Token{models.NewToken("ต้มยำ", models.BBox{})}},
	}}

	chunks := NewPlanner(WithMaxLength(8)).PlanDocument(doc)

	require.Len(t, chunks, 2)
	assert.Equal(t, "ผัดไทย60", chunks[0].Text())
	assert.Equal(t, "ต้มยำ", chunks[1].Text())
}

func items(names ...string) []models.MenuItem {
	out := make([]models.MenuItem, len(names))
	for i, n := range names {
		out[i] = models.MenuItem{Name: n, Price: float64(10 * (i + 1))}
	}
	return out
}

func names(list []models.MenuItem) []string {
	out := make([]string, len(list))
	for i, it := range list {
		out[i] = it.Name
	}
	return out
}

func threeChunks() []models.Chunk {
	return []models.Chunk{
		{Index: 0, Lines: []string{"one"}},
		{Index: 1, Lines: []string{"two"}},
		{Index: 2, Lines: []string{"three"}},
	}
}

func TestMergeSkipsFailedChunk(t *testing.T) {
	var calls int32
	s := StructurerFunc(func(_ context.Context, text string) ([]models.MenuItem, error) {
		atomic.AddInt32(&calls, 1)
		if text == "two" {
			return nil, errors.New("provider exploded")
		}
		return items(text+"-a", text+"-b"), nil
	})

	res, err := NewMerger().Merge(context.Background(), threeChunks(), s)
	require.NoError(t, err)

	assert.Equal(t, []string{"one-a", "one-b", "three-a", "three-b"}, names(res.Items))
	assert.Equal(t, 3, res.ChunkCount)
	assert.Equal(t, []int{1}, res.FailedIndexes())
	assert.EqualError(t, res.Failed[0].Err, "provider exploded")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestMergePreservesOrderUnderConcurrency(t *testing.T) {
	delays := map[string]time.Duration{
		"one":   30 * time.Millisecond,
		"two":   15 * time.Millisecond,
		"three": 0,
	}
	s := StructurerFunc(func(ctx context.Context, text string) ([]models.MenuItem, error) {
		time.Sleep(delays[text])
		return items(text), nil
	})

	res, err := NewMerger(WithConcurrency(3)).Merge(context.Background(), threeChunks(), s)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, names(res.Items))
	assert.Empty(t, res.Failed)
}

func TestMergeNoChunksNoCalls(t *testing.T) {
	s := StructurerFunc(func(context.Context, string) ([]models.MenuItem, error) {
		t.Fatal("structurer must not be called")
		return nil, nil
	})

	res, err := NewMerger().Merge(context.Background(), NewPlanner().PlanDocument(models.NoContent), s)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Zero(t, res.ChunkCount)
}

func TestMergeStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	s := StructurerFunc(func(_ context.Context, text string) ([]models.MenuItem, error) {
		atomic.AddInt32(&calls, 1)
		if text == "one" {
			cancel()
		}
		return items(text), nil
	})

	res, err := NewMerger().Merge(ctx, threeChunks(), s)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"one"}, names(res.Items))
	assert.Equal(t, []int{1, 2}, res.FailedIndexes())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMergeAppliesCallTimeout(t *testing.T) {
	s := StructurerFunc(func(ctx context.Context, text string) ([]models.MenuItem, error) {
		if text == "two" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return items(text), nil
	})

	res, err := NewMerger(WithCallTimeout(20*time.Millisecond)).Merge(context.Background(), threeChunks(), s)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three"}, names(res.Items))
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0].Err, context.DeadlineExceeded)
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
