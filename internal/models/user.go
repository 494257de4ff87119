package models

import "time"

// User is an account row. PasswordHash never leaves the service layer:
// responses use PublicUser.
type User struct {
	ID           int       `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Designation  *string   `json:"designation,omitempty"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ProfilePic   *string   `json:"profile_pic,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	IsApproved   bool      `json:"is_approved"`
	CreatedAt    time.Time `json:"created_at"`
}

// Status reports the lifecycle state. Deleted accounts have no row, so only
// pending and approved are observable.
func (u *User) Status() string {
	if u.IsApproved {
		return StatusApproved
	}
	return StatusPending
}

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// PublicUser is the projection returned to clients.
type PublicUser struct {
	ID          int       `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Designation *string   `json:"designation"`
	ProfilePic  *string   `json:"profile_pic"`
	IsAdmin     bool      `json:"is_admin"`
	IsApproved  bool      `json:"is_approved"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Designation: u.Designation,
		ProfilePic:  u.ProfilePic,
		IsAdmin:     u.IsAdmin,
		IsApproved:  u.IsApproved,
		Status:      u.Status(),
		CreatedAt:   u.CreatedAt,
	}
}

// ListFilter narrows ListAccounts. Only "pending" is recognised; anything else
// lists every account.
type ListFilter string

const (
	FilterAll     ListFilter = ""
	FilterPending ListFilter = "pending"
)

func ParseListFilter(s string) ListFilter {
	if s == string(FilterPending) {
		return FilterPending
	}
	return FilterAll
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	FirstName   string
	LastName    string
	Designation string
	Email       string
	Password    string
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordResetConfirm struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

type AccountIDRequest struct {
	UserID int `json:"user_id"`
}

type ContactAdminRequest struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}
