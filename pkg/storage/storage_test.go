package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menu-scan/pkg/models"
)

// openTestRepo connects to TEST_DATABASE_URL or skips.
func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	repo, err := Open(dsn)
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestScanRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	rec := &models.ScanRecord{
		RequestID:     uuid.NewString(),
		DeskewAngle:   -2.5,
		DeskewApplied: true,
		OCRProvider:   "google",
		Text:          "ผัดไทย60",
		ItemsJSON:     `[{"name":"ผัดไทย","price":60}]`,
		ChunkCount:    1,
	}
	require.NoError(t, repo.SaveScan(ctx, rec))
	assert.NotZero(t, rec.ID)

	got, err := repo.GetScan(ctx, rec.RequestID)
	require.NoError(t, err)
	assert.Equal(t, rec.Text, got.Text)
	assert.Equal(t, -2.5, got.DeskewAngle)

	list, err := repo.ListScans(ctx, 5, 0)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, rec.RequestID, list[0].RequestID)
}

func TestGetScanNotFound(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.GetScan(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDishes(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	name := "test-" + uuid.NewString()
	require.NoError(t, repo.SaveDishes(ctx, []models.Dish{{ThaiName: name, ThaiScript: "ผัดไทย", EnglishName: "Pad Thai"}}))
	require.NoError(t, repo.SaveDishes(ctx, nil))

	dishes, err := repo.ListDishes(ctx)
	require.NoError(t, err)

	found := false
	for _, d := range dishes {
		if d.ThaiName == name {
			found = true
		}
	}
	assert.True(t, found)
}
