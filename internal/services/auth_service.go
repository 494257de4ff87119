package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"portalauth/internal/authz"
	"portalauth/internal/logger"
	"portalauth/internal/metrics"
	"portalauth/internal/models"
	"portalauth/internal/repositories"
)

// Session is the result of a successful sign-in.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      models.PublicUser
}

// AuthService is the authentication gateway: sign-in, session resolution and
// the OTP based password reset.
type AuthService interface {
	SignIn(ctx context.Context, req models.SignInRequest) (*Session, error)
	Authenticate(token string) (authz.Caller, error)
	WhoAmI(ctx context.Context, caller authz.Caller) (models.PublicUser, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, req models.PasswordResetConfirm) error
}

type authService struct {
	repo      repositories.UserRepository
	hasher    PasswordHasher
	tokens    TokenService
	otp       OTPService
	notify    Dispatcher
	templates EmailTemplates
	log       logger.Logger
	metrics   *metrics.Metrics

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	repo repositories.UserRepository,
	hasher PasswordHasher,
	tokens TokenService,
	otp OTPService,
	notify Dispatcher,
	templates EmailTemplates,
	log logger.Logger,
	m *metrics.Metrics,
) AuthService {
	return &authService{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		otp:       otp,
		notify:    notify,
		templates: templates,
		log:       log.With("component", "auth"),
		metrics:   m,
	}
}

// burnHash runs a verify against a throwaway digest so unknown emails take as
// long as wrong passwords.
func (s *authService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("portal-unknown-account")
	})
	if s.dummyHash != "" {
		s.hasher.Verify(password, s.dummyHash)
	}
}

func (s *authService) SignIn(ctx context.Context, req models.SignInRequest) (*Session, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, required("email")
	}
	if req.Password == "" {
		return nil, required("password")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		s.burnHash(req.Password)
		s.log.Info("signin rejected", "email", email, "reason", "unknown email")
		s.metrics.SignIn("invalid")
		return nil, ErrAuthentication
	}
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.log.Info("signin rejected", "user_id", user.ID, "reason", "password mismatch")
		s.metrics.SignIn("invalid")
		return nil, ErrAuthentication
	}
	if !user.IsApproved {
		s.log.Info("signin rejected", "user_id", user.ID, "reason", "pending approval")
		s.metrics.SignIn("pending")
		return nil, ErrNotApproved
	}

	token, exp, err := s.tokens.Mint(SessionIdentity{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		IsAdmin:   user.IsAdmin,
	})
	if err != nil {
		s.metrics.SignIn("error")
		return nil, fmt.Errorf("mint session: %w", err)
	}

	s.log.Info("signin ok", "user_id", user.ID, "admin", user.IsAdmin)
	s.metrics.SignIn("ok")
	return &Session{Token: token, ExpiresAt: exp, User: user.Public()}, nil
}

func (s *authService) Authenticate(token string) (authz.Caller, error) {
	if strings.TrimSpace(token) == "" {
		return authz.Caller{}, ErrAuthentication
	}
	return s.tokens.Authenticate(token)
}

// WhoAmI re-reads the account: a valid token does not mean the row still exists.
func (s *authService) WhoAmI(ctx context.Context, caller authz.Caller) (models.PublicUser, error) {
	if !caller.Authenticated() {
		return models.PublicUser{}, ErrAuthentication
	}
	user, err := s.repo.GetByID(ctx, caller.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.PublicUser{}, notFound("user")
	}
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("load user %d: %w", caller.ID, err)
	}
	return user.Public(), nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return required("email")
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound("user")
	}
	if err != nil {
		return fmt.Errorf("lookup email: %w", err)
	}

	code, err := s.otp.Issue(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("issue otp: %w", err)
	}
	s.metrics.OTPIssued()
	s.log.Info("reset code issued", "user_id", user.ID)

	if s.notify != nil {
		n := s.templates.ResetCode(code, s.otp.TTL())
		n.To = user.Email
		s.notify.Dispatch(n)
	}
	return nil
}

// ConfirmPasswordReset stores the new password before consuming the code. A
// crash in between leaves a reusable code, never a lost password update.
func (s *authService) ConfirmPasswordReset(ctx context.Context, req models.PasswordResetConfirm) error {
	email := strings.TrimSpace(req.Email)
	code := strings.TrimSpace(req.OTP)
	switch {
	case email == "":
		return required("email")
	case code == "":
		return required("otp")
	case req.NewPassword == "":
		return required("new_password")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound("user")
	}
	if err != nil {
		return fmt.Errorf("lookup email: %w", err)
	}

	ok, err := s.otp.Validate(ctx, user.ID, code)
	if err != nil {
		return fmt.Errorf("validate otp: %w", err)
	}
	if !ok {
		s.log.Info("reset rejected", "user_id", user.ID, "reason", "invalid otp")
		return ErrInvalidOTP
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notFound("user")
		}
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.otp.Consume(ctx, user.ID); err != nil {
		s.log.Error("consume otp after reset", "user_id", user.ID, "err", err)
	}
	s.log.Info("password reset", "user_id", user.ID)
	return nil
}
