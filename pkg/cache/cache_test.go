package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspirehep/inspire-matcher/pkg/models"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewCache(context.Background(), Config{
		Addr:   mr.Addr(),
		Prefix: "test",
		TTL:    time.Minute,
	}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("should miss on an empty cache", func(t *testing.T) {
		c, _ := newTestCache(t)

		run, err := c.Get(ctx, "default", "cfg", "abc")
		require.NoError(t, err)
		assert.Nil(t, run)
	})

	t.Run("should round trip a run", func(t *testing.T) {
		c, mr := newTestCache(t)

		run := &models.MatchRun{
			RunID:             "run-1",
			ConfigName:        "default",
			ConfigFingerprint: "cfg",
			RecordFingerprint: "abc",
			Matches: []models.Match{
				{Step: 0, Query: 1, Hit: models.Hit{ID: "42", Score: 3.5, Source: models.Record{"control_number": 42.0}}},
			},
		}
		require.NoError(t, c.Set(ctx, run))
		assert.True(t, mr.Exists("test:match:default:cfg:abc"))
		assert.Equal(t, time.Minute, mr.TTL("test:match:default:cfg:abc"))

		cached, err := c.Get(ctx, "default", "cfg", "abc")
		require.NoError(t, err)
		require.NotNil(t, cached)
		assert.True(t, cached.Cached)
		assert.Equal(t, "run-1", cached.RunID)
		require.Len(t, cached.Matches, 1)
		assert.Equal(t, "42", cached.Matches[0].Hit.ID)
	})

	t.Run("should expire runs", func(t *testing.T) {
		c, mr := newTestCache(t)

		require.NoError(t, c.Set(ctx, &models.MatchRun{ConfigName: "default", ConfigFingerprint: "cfg", RecordFingerprint: "abc"}))
		mr.FastForward(2 * time.Minute)

		run, err := c.Get(ctx, "default", "cfg", "abc")
		require.NoError(t, err)
		assert.Nil(t, run)
	})

	t.Run("should drop unreadable entries", func(t *testing.T) {
		c, mr := newTestCache(t)
		require.NoError(t, mr.Set("test:match:default:cfg:abc", "not json"))

		run, err := c.Get(ctx, "default", "cfg", "abc")
		require.NoError(t, err)
		assert.Nil(t, run)
		assert.False(t, mr.Exists("test:match:default:cfg:abc"))
	})

	t.Run("should keep runs of different configs with the same name apart", func(t *testing.T) {
		c, _ := newTestCache(t)
		require.NoError(t, c.Set(ctx, &models.MatchRun{RunID: "run-a", ConfigName: "inline", ConfigFingerprint: "a", RecordFingerprint: "abc"}))

		run, err := c.Get(ctx, "inline", "b", "abc")
		require.NoError(t, err)
		assert.Nil(t, run)

		run, err = c.Get(ctx, "inline", "a", "abc")
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, "run-a", run.RunID)
	})

	t.Run("should invalidate a config", func(t *testing.T) {
		c, mr := newTestCache(t)
		require.NoError(t, c.Set(ctx, &models.MatchRun{ConfigName: "default", ConfigFingerprint: "cfg", RecordFingerprint: "a"}))
		require.NoError(t, c.Set(ctx, &models.MatchRun{ConfigName: "default", ConfigFingerprint: "cfg", RecordFingerprint: "b"}))
		require.NoError(t, c.Set(ctx, &models.MatchRun{ConfigName: "other", ConfigFingerprint: "cfg", RecordFingerprint: "a"}))

		require.NoError(t, c.Invalidate(ctx, "default"))
		assert.False(t, mr.Exists("test:match:default:cfg:a"))
		assert.False(t, mr.Exists("test:match:default:cfg:b"))
		assert.True(t, mr.Exists("test:match:other:cfg:a"))
	})
}
