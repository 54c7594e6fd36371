package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerExclusiveUntilReleaseOrExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	token, ok, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "k", "someone-else"))
	_, ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "k", token))
	token, ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	now = now.Add(2 * time.Minute)
	_, ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok)

	_, _, err = l.TryLock(ctx, "", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyLockKey)
	_, _, err = l.TryLock(ctx, "k2", 0)
	assert.ErrorIs(t, err, ErrInvalidLockTTL)
}

func TestLocalBucketRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewLocalBucket()
	b.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := b.Allow(ctx, "actor", 0.5, 2)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := b.Allow(ctx, "actor", 0.5, 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2*time.Second, res.RetryAfter)

	now = now.Add(2 * time.Second)
	res, err = b.Allow(ctx, "actor", 0.5, 2)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	_, err = b.Allow(ctx, "actor", 0, 2)
	assert.ErrorIs(t, err, ErrInvalidBucket)
}

func TestLimiterDisabledAllowsEverything(t *testing.T) {
	var nilLimiter *Limiter
	res, err := nilLimiter.AllowExchangeRefresh(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	_, ok, err := nilLimiter.TryLockBulkRate(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiterBulkLockIsExclusive(t *testing.T) {
	l := NewLimiterWith(NewLocalBucket(), NewLocalLocker(), 1, 1, time.Minute)
	ctx := context.Background()

	token, ok, err := l.TryLockBulkRate(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLockBulkRate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.ReleaseBulkRate(ctx, token))
	_, ok, _ = l.TryLockBulkRate(ctx)
	assert.True(t, ok)

	res, err := l.AllowExchangeRefresh(ctx, "9")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = l.AllowExchangeRefresh(ctx, "9")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}
