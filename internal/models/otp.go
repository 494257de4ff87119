package models

import "time"

// OTPCode is the single live reset code for a user. Only the bcrypt hash of the
// code is stored.
type OTPCode struct {
	UserID    int        `json:"user_id"`
	CodeHash  string     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

func (o *OTPCode) Used() bool { return o.UsedAt != nil }
