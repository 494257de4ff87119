package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"portalauth/internal/authz"
)

// SessionClaimsVersion is bumped whenever the claim layout changes.
const SessionClaimsVersion = 1

// SessionClaims is the payload of the session cookie. Subject is the user id.
type SessionClaims struct {
	Version   int    `json:"ver"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	IsAdmin   bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// SessionIdentity is what gets embedded at sign-in.
type SessionIdentity struct {
	UserID    int
	Email     string
	FirstName string
	IsAdmin   bool
}

type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

type TokenService interface {
	Mint(id SessionIdentity) (token string, expiresAt time.Time, err error)
	// Verify returns ErrExpiredToken for a well-signed but expired token and
	// ErrInvalidToken for anything else that fails.
	Verify(token string) (*SessionClaims, error)
	// Authenticate verifies the token and converts it into a Caller.
	Authenticate(token string) (authz.Caller, error)
	TTL() time.Duration
}

type tokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(cfg TokenConfig) (TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token service: empty secret")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token service: ttl must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &tokenService{secret: cfg.Secret, issuer: cfg.Issuer, ttl: cfg.TTL, now: now}, nil
}

func (s *tokenService) TTL() time.Duration { return s.ttl }

func (s *tokenService) Mint(id SessionIdentity) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := &SessionClaims{
		Version:   SessionClaimsVersion,
		Email:     id.Email,
		FirstName: id.FirstName,
		IsAdmin:   id.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(id.UserID),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, exp, nil
}

func (s *tokenService) Verify(tokenStr string) (*SessionClaims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Version != SessionClaimsVersion {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *tokenService) Authenticate(tokenStr string) (authz.Caller, error) {
	claims, err := s.Verify(tokenStr)
	if err != nil {
		return authz.Caller{}, err
	}
	caller, ok := authz.CallerFromSubject(claims.Subject, claims.Email, claims.IsAdmin)
	if !ok {
		return authz.Caller{}, ErrInvalidToken
	}
	return caller, nil
}
