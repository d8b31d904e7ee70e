package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menu-scan/pkg/models"
	"menu-scan/pkg/services/ocr"
)

func newTestCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedis(context.Background(), "redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func sampleResult() *ocr.Result {
	return &ocr.Result{
		Provider: "google",
		FullText: "ผัดไทย 60",
		Tokens: []models.Token{
			models.NewToken("ผัดไทย", models.BBox{XMin: 10, XMax: 60, YMin: 20, YMax: 40}),
			models.NewToken("60", models.BBox{XMin: 80, XMax: 100, YMin: 22, YMax: 38}),
		},
	}
}

func TestKeyDependsOnAllInputs(t *testing.T) {
	base := Key([]byte("img"), "google", []string{"th", "en"})

	assert.Equal(t, base, Key([]byte("img"), "google", []string{"th", "en"}))
	assert.NotEqual(t, base, Key([]byte("img2"), "google", []string{"th", "en"}))
	assert.NotEqual(t, base, Key([]byte("img"), "azure", []string{"th", "en"}))
	assert.NotEqual(t, base, Key([]byte("img"), "google", []string{"en"}))
	assert.Contains(t, base, keyPrefix)
}

func TestRedisRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := Key([]byte("img"), "google", nil)

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, sampleResult())

	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "google", got.Provider)
	require.Len(t, got.Tokens, 2)
	assert.Equal(t, 35.0, got.Tokens[0].CenterX())
	assert.Equal(t, 30.0, got.Tokens[0].CenterY())

	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestRedisExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", sampleResult())
	mr.FastForward(2 * time.Hour)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCorruptEntryIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("k", "{not json"))

	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestRedisUnavailableIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	c := NewRedisFromClient(client, 0)
	assert.Equal(t, DefaultTTL, c.ttl)

	mr.Close()

	c.Set(context.Background(), "k", sampleResult())
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestNewRedisBadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not a url", time.Hour)
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	var c TokenCache = Noop{}
	c.Set(context.Background(), "k", sampleResult())
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}
