package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"portalauth/internal/models"
)

const otpKeyPrefix = "portal:otp:"

// RedisOTPRepository keeps one key per user that expires together with the code.
type RedisOTPRepository struct {
	client redis.UniversalClient
}

func NewRedisOTPRepository(client redis.UniversalClient) *RedisOTPRepository {
	return &RedisOTPRepository{client: client}
}

type redisOTP struct {
	UserID    int        `json:"user_id"`
	CodeHash  string     `json:"code_hash"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
}

func otpKey(userID int) string { return otpKeyPrefix + strconv.Itoa(userID) }

func (r *RedisOTPRepository) Upsert(ctx context.Context, otp *models.OTPCode) error {
	raw, err := json.Marshal(redisOTP{
		UserID:    otp.UserID,
		CodeHash:  otp.CodeHash,
		CreatedAt: otp.CreatedAt,
		ExpiresAt: otp.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("otp encode: %w", err)
	}
	ttl := time.Until(otp.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := r.client.Set(ctx, otpKey(otp.UserID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("otp set: %w", err)
	}
	return nil
}

func (r *RedisOTPRepository) GetByUserID(ctx context.Context, userID int) (*models.OTPCode, error) {
	raw, err := r.client.Get(ctx, otpKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("otp get: %w", err)
	}
	var rec redisOTP
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("otp decode: %w", err)
	}
	return &models.OTPCode{
		UserID:    rec.UserID,
		CodeHash:  rec.CodeHash,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
		UsedAt:    rec.UsedAt,
	}, nil
}

func (r *RedisOTPRepository) MarkUsed(ctx context.Context, userID int, at time.Time) error {
	key := otpKey(userID)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		var rec redisOTP
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("otp decode: %w", err)
		}
		if rec.UsedAt != nil {
			return ErrNotFound
		}
		used := at.UTC()
		rec.UsedAt = &used
		updated, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("otp encode: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("otp mark used: %w", err)
	}
	return nil
}
