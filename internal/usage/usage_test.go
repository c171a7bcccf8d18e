package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

func TestMemory_WindowsRollOver(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	day1 := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Hour)

	require.NoError(t, c.Record(ctx, "c1", 40, day1))
	require.NoError(t, c.Record(ctx, "c1", 0, day1))
	require.NoError(t, c.Record(ctx, "c1", 5, day2))

	u, err := c.Get(ctx, "c1", models.QuotaDaily, day1)
	require.NoError(t, err)
	assert.Equal(t, Usage{Requests: 2, Tokens: 40}, u)

	// April 1st starts a new day and a new month.
	u, err = c.Get(ctx, "c1", models.QuotaDaily, day2)
	require.NoError(t, err)
	assert.Equal(t, Usage{Requests: 1, Tokens: 5}, u)

	u, err = c.Get(ctx, "c1", models.QuotaMonthly, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.Requests)
}

func TestMemory_PerCredential(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, c.Record(ctx, "c1", 0, now))

	u, err := c.Get(ctx, "c2", models.QuotaDaily, now)
	require.NoError(t, err)
	assert.Zero(t, u.Requests)
}
