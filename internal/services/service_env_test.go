package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"portalauth/internal/authz"
	"portalauth/internal/logger"
	"portalauth/internal/models"
	"portalauth/internal/repositories"
	"portalauth/internal/storage"
)

// recordingDispatcher keeps every queued notification in memory.
type recordingDispatcher struct {
	mu    sync.Mutex
	items []Notification
}

func (d *recordingDispatcher) Dispatch(n Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, n)
}

func (d *recordingDispatcher) All() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Notification(nil), d.items...)
}

func (d *recordingDispatcher) Last() Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return Notification{}
	}
	return d.items[len(d.items)-1]
}

type testEnv struct {
	users    *repositories.MemoryUserRepository
	otps     *repositories.MemoryOTPRepository
	clock    *fakeClock
	outbox   *recordingDispatcher
	uploads  *storage.LocalStore
	tokens   TokenService
	accounts AccountService
	auth     AuthService
	contact  ContactService
	admin    authz.Caller
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newFakeClock()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	users := repositories.NewMemoryUserRepository()
	otps := repositories.NewMemoryOTPRepository()
	outbox := &recordingDispatcher{}
	uploads := storage.NewLocalStore(t.TempDir(), "/static/uploads")
	templates := EmailTemplates{PortalURL: "https://portal.example.com"}
	log := logger.Nop()

	tokens, err := NewTokenService(TokenConfig{
		Secret: []byte("test-secret"),
		Issuer: "portal",
		TTL:    time.Hour,
		Now:    clock.Now,
	})
	require.NoError(t, err)

	otp := NewOTPService(otps, hasher, 10*time.Minute, 6, WithOTPClock(clock.Now))

	env := &testEnv{
		users:    users,
		otps:     otps,
		clock:    clock,
		outbox:   outbox,
		uploads:  uploads,
		tokens:   tokens,
		accounts: NewAccountService(users, hasher, uploads, outbox, templates, log, nil),
		auth:     NewAuthService(users, hasher, tokens, otp, outbox, templates, log, nil),
		contact:  NewContactService(users, outbox, templates, log),
	}
	env.admin = env.seedAdmin(t, "root@x.com", "rootpw")
	return env
}

func (e *testEnv) seedAdmin(t *testing.T, email, password string) authz.Caller {
	t.Helper()
	hash, err := NewBcryptHasher(bcrypt.MinCost).Hash(password)
	require.NoError(t, err)
	u := &models.User{
		FirstName:    "Root",
		LastName:     "Admin",
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      true,
		IsApproved:   true,
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return authz.Caller{ID: u.ID, Email: u.Email, IsAdmin: true}
}

func (e *testEnv) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	u, err := e.accounts.Register(context.Background(), models.RegisterRequest{
		FirstName: "Ann",
		LastName:  "Lee",
		Email:     email,
		Password:  password,
	}, nil)
	require.NoError(t, err)
	return u
}

var otpInBody = regexp.MustCompile(`<strong>(\d+)</strong>`)

func codeFrom(t *testing.T, n Notification) string {
	t.Helper()
	m := otpInBody.FindStringSubmatch(n.Body)
	require.Len(t, m, 2, "no code in %q", n.Body)
	return m[1]
}
