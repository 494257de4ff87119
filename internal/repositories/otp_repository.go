package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"portalauth/internal/models"
)

// OTPRepository holds at most one live code per user.
type OTPRepository interface {
	// Upsert replaces any previous code for otp.UserID.
	Upsert(ctx context.Context, otp *models.OTPCode) error
	GetByUserID(ctx context.Context, userID int) (*models.OTPCode, error)
	// MarkUsed returns ErrNotFound when there is nothing to mark.
	MarkUsed(ctx context.Context, userID int, at time.Time) error
}

type otpRepository struct {
	DB *sql.DB
}

func NewOTPRepository(db *sql.DB) OTPRepository {
	return &otpRepository{DB: db}
}

func (r *otpRepository) Upsert(ctx context.Context, otp *models.OTPCode) error {
	const q = `
		INSERT INTO otp_codes (user_id, code_hash, created_at, expires_at, used_at)
		VALUES ($1, $2, $3, $4, NULL)
		ON CONFLICT (user_id) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at,
		    used_at = NULL
	`
	if _, err := r.DB.ExecContext(ctx, q, otp.UserID, otp.CodeHash, otp.CreatedAt, otp.ExpiresAt); err != nil {
		return fmt.Errorf("otp upsert: %w", err)
	}
	return nil
}

func (r *otpRepository) GetByUserID(ctx context.Context, userID int) (*models.OTPCode, error) {
	const q = `
		SELECT user_id, code_hash, created_at, expires_at, used_at
		FROM otp_codes
		WHERE user_id = $1
	`
	otp := &models.OTPCode{}
	var usedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, q, userID).Scan(
		&otp.UserID, &otp.CodeHash, &otp.CreatedAt, &otp.ExpiresAt, &usedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("otp get: %w", err)
	}
	if usedAt.Valid {
		t := usedAt.Time
		otp.UsedAt = &t
	}
	return otp, nil
}

func (r *otpRepository) MarkUsed(ctx context.Context, userID int, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE otp_codes SET used_at = $1 WHERE user_id = $2 AND used_at IS NULL`, at, userID)
	if err != nil {
		return fmt.Errorf("otp mark used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("otp mark used: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
