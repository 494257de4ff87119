package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"portalauth/internal/models"
	"portalauth/internal/repositories"
)

type OTPService interface {
	// Issue creates a fresh code for userID, superseding any previous one.
	Issue(ctx context.Context, userID int) (string, error)
	// Validate reports whether code is the live, unused, unexpired code for userID.
	// Wrong, expired, used and missing codes are indistinguishable.
	Validate(ctx context.Context, userID int, code string) (bool, error)
	// Consume invalidates the code. Safe to call when nothing is stored.
	Consume(ctx context.Context, userID int) error
	TTL() time.Duration
}

type otpService struct {
	repo   repositories.OTPRepository
	hasher PasswordHasher
	ttl    time.Duration
	length int
	now    func() time.Time
	rand   io.Reader
}

type OTPOption func(*otpService)

func WithOTPClock(now func() time.Time) OTPOption {
	return func(s *otpService) { s.now = now }
}

func WithOTPRandom(r io.Reader) OTPOption {
	return func(s *otpService) { s.rand = r }
}

func NewOTPService(repo repositories.OTPRepository, hasher PasswordHasher, ttl time.Duration, length int, opts ...OTPOption) OTPService {
	if length <= 0 {
		length = 6
	}
	s := &otpService{
		repo:   repo,
		hasher: hasher,
		ttl:    ttl,
		length: length,
		now:    time.Now,
		rand:   rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *otpService) TTL() time.Duration { return s.ttl }

func (s *otpService) generate() (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.length)), nil)
	n, err := rand.Int(s.rand, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", s.length, n.Int64()), nil
}

func (s *otpService) Issue(ctx context.Context, userID int) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("otp generate: %w", err)
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return "", fmt.Errorf("otp hash: %w", err)
	}
	now := s.now()
	if err := s.repo.Upsert(ctx, &models.OTPCode{
		UserID:    userID,
		CodeHash:  hash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}); err != nil {
		return "", err
	}
	return code, nil
}

func (s *otpService) Validate(ctx context.Context, userID int, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	rec, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if rec.Used() || !s.now().Before(rec.ExpiresAt) {
		return false, nil
	}
	return s.hasher.Verify(code, rec.CodeHash), nil
}

func (s *otpService) Consume(ctx context.Context, userID int) error {
	err := s.repo.MarkUsed(ctx, userID, s.now())
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return err
	}
	return nil
}
