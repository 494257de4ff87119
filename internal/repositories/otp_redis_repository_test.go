package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalauth/internal/models"
)

func newRedisOTPRepo(t *testing.T) (*RedisOTPRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisOTPRepository(client), mr
}

func TestRedisOTPRepository_UpsertAndGet(t *testing.T) {
	repo, mr := newRedisOTPRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Upsert(ctx, &models.OTPCode{
		UserID: 9, CodeHash: "h1", CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}))

	got, err := repo.GetByUserID(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "h1", got.CodeHash)
	assert.True(t, got.ExpiresAt.Equal(now.Add(10*time.Minute)))
	assert.False(t, got.Used())
	assert.Greater(t, mr.TTL("portal:otp:9"), time.Duration(0))
}

func TestRedisOTPRepository_UpsertOverwrites(t *testing.T) {
	repo, _ := newRedisOTPRepo(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, &models.OTPCode{UserID: 1, CodeHash: "old", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, repo.MarkUsed(ctx, 1, now))
	require.NoError(t, repo.Upsert(ctx, &models.OTPCode{UserID: 1, CodeHash: "new", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))

	got, err := repo.GetByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", got.CodeHash)
	assert.False(t, got.Used())
}

func TestRedisOTPRepository_MarkUsed(t *testing.T) {
	repo, mr := newRedisOTPRepo(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, &models.OTPCode{UserID: 2, CodeHash: "h", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}))
	ttlBefore := mr.TTL("portal:otp:2")

	require.NoError(t, repo.MarkUsed(ctx, 2, now))
	got, err := repo.GetByUserID(ctx, 2)
	require.NoError(t, err)
	assert.True(t, got.Used())
	assert.Equal(t, ttlBefore, mr.TTL("portal:otp:2"))

	// second mark and missing key both report ErrNotFound
	assert.ErrorIs(t, repo.MarkUsed(ctx, 2, now), ErrNotFound)
	assert.ErrorIs(t, repo.MarkUsed(ctx, 404, now), ErrNotFound)
}

func TestRedisOTPRepository_KeyExpires(t *testing.T) {
	repo, mr := newRedisOTPRepo(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, &models.OTPCode{UserID: 3, CodeHash: "h", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	_, err := repo.GetByUserID(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}
