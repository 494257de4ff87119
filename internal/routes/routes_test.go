package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"portalauth/internal/handlers"
	"portalauth/internal/logger"
	"portalauth/internal/middleware"
	"portalauth/internal/models"
	"portalauth/internal/repositories"
	"portalauth/internal/services"
	"portalauth/internal/storage"
)

const cookieName = "access_token_cookie"

type outbox struct {
	mu    sync.Mutex
	items []services.Notification
}

func (o *outbox) Dispatch(n services.Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, n)
}

func (o *outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

type server struct {
	t      *testing.T
	engine *gin.Engine
	users  *repositories.MemoryUserRepository
	outbox *outbox
}

func newServer(t *testing.T, csrf bool) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Nop()
	hasher := services.NewBcryptHasher(bcrypt.MinCost)
	users := repositories.NewMemoryUserRepository()
	box := &outbox{}
	templates := services.EmailTemplates{PortalURL: "https://portal.example.com"}

	tokens, err := services.NewTokenService(services.TokenConfig{Secret: []byte("k"), Issuer: "portal", TTL: time.Hour})
	require.NoError(t, err)
	otp := services.NewOTPService(repositories.NewMemoryOTPRepository(), hasher, 10*time.Minute, 6)

	accounts := services.NewAccountService(users, hasher, storage.NewLocalStore(t.TempDir(), "/static/uploads"), box, templates, log, nil)
	auth := services.NewAuthService(users, hasher, tokens, otp, box, templates, log, nil)
	contact := services.NewContactService(users, box, templates, log)

	cookies := handlers.CookieConfig{Name: cookieName, Secure: true, SameSite: http.SameSiteNoneMode, CSRF: csrf}
	guards := Guards{Session: middleware.SessionAuth(auth, cookieName)}
	if csrf {
		guards.CSRF = middleware.CSRFGuard(cookieName)
	}

	r := gin.New()
	SetupRoutes(r,
		handlers.NewAuthHandler(auth, accounts, cookies, log),
		handlers.NewAdminHandler(accounts, log),
		handlers.NewPublicHandler(contact, nil, log),
		guards,
	)

	hash, err := hasher.Hash("rootpw")
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), &models.User{
		FirstName: "Root", LastName: "Admin", Email: "root@x.com",
		PasswordHash: hash, IsAdmin: true, IsApproved: true,
	}))

	return &server{t: t, engine: r, users: users, outbox: box}
}

func (s *server) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *server) json(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, cookies...)
}

func (s *server) signup(email string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"first_name": "Ann", "last_name": "Lee", "email": email, "password": "pw",
	} {
		require.NoError(s.t, w.WriteField(k, v))
	}
	fw, err := w.CreateFormFile("profile_pic", "me.png")
	require.NoError(s.t, err)
	_, _ = fw.Write([]byte("png"))
	require.NoError(s.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.do(req)
}

func (s *server) signin(email, password string) (*httptest.ResponseRecorder, []*http.Cookie) {
	rec := s.json(http.MethodPost, "/api/auth/signin", models.SignInRequest{Email: email, Password: password})
	return rec, rec.Result().Cookies()
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestLifecycleOverHTTP(t *testing.T) {
	s := newServer(t, false)

	rec := s.signup("a@x.com")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Status string `json:"status"`
		UserID int    `json:"user_id"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "pending", created.Status)
	assert.NotContains(t, rec.Body.String(), "token")

	assert.Equal(t, http.StatusConflict, s.signup("a@x.com").Code)

	rec, _ = s.signin("a@x.com", "pw")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, adminCookies := s.signin("root@x.com", "rootpw")
	require.Equal(t, http.StatusOK, rec.Code)
	sess := findCookie(adminCookies, cookieName)
	require.NotNil(t, sess)
	assert.True(t, sess.Secure)
	assert.True(t, sess.HttpOnly)
	assert.Equal(t, "/", sess.Path)
	assert.Equal(t, http.SameSiteNoneMode, sess.SameSite)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/admin/users?status=pending", nil), sess)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []models.PublicUser
	decode(t, rec, &pending)
	require.Len(t, pending, 1)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.json(http.MethodPost, "/api/admin/approve", models.AccountIDRequest{UserID: created.UserID}, sess)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.outbox.Len())

	rec, userCookies := s.signin("a@x.com", "pw")
	require.Equal(t, http.StatusOK, rec.Code)
	var profile map[string]any
	decode(t, rec, &profile)
	assert.Equal(t, "a@x.com", profile["email"])
	assert.Equal(t, false, profile["is_admin"])

	userSess := findCookie(userCookies, cookieName)
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), userSess)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.PublicUser
	decode(t, rec, &me)
	assert.Equal(t, created.UserID, me.ID)
	require.NotNil(t, me.ProfilePic)

	rec = s.json(http.MethodPost, "/api/admin/approve", models.AccountIDRequest{UserID: created.UserID}, userSess)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/admin/users/abc", nil), sess)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/admin/users/999", nil), sess)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.json(http.MethodPost, "/api/admin/reject", models.AccountIDRequest{UserID: 0}, sess)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/admin/users/"+strconv.Itoa(created.UserID), nil), sess)
	require.Equal(t, http.StatusOK, rec.Code)

	// token still verifies but the account is gone
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), userSess)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionErrorsOverHTTP(t *testing.T) {
	s := newServer(t, false)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnprocessableEntity, s.do(req).Code)

	rec, _ = s.signin("root@x.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = s.signin("", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.json(http.MethodPost, "/api/auth/signout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := findCookie(rec.Result().Cookies(), cookieName)
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	s := newServer(t, false)

	rec := s.json(http.MethodPost, "/api/auth/forgot", models.PasswordResetRequest{Email: "ghost@x.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.json(http.MethodPost, "/api/auth/forgot", models.PasswordResetRequest{Email: "root@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.outbox.Len())

	rec = s.json(http.MethodPost, "/api/auth/reset", models.PasswordResetConfirm{Email: "root@x.com", OTP: "bogus", NewPassword: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContactAdminOverHTTP(t *testing.T) {
	s := newServer(t, false)

	rec := s.json(http.MethodPost, "/api/public/contact-admin", models.ContactAdminRequest{Email: "v@y.com", Message: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.outbox.Len())

	rec = s.json(http.MethodPost, "/api/public/contact-admin", models.ContactAdminRequest{Email: "v@y.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestCSRFOverHTTP(t *testing.T) {
	s := newServer(t, true)

	rec, cookies := s.signin("root@x.com", "rootpw")
	require.Equal(t, http.StatusOK, rec.Code)
	sess := findCookie(cookies, cookieName)
	csrf := findCookie(cookies, middleware.CSRFCookieName)
	require.NotNil(t, csrf)
	assert.False(t, csrf.HttpOnly)

	rec = s.json(http.MethodPost, "/api/admin/approve", models.AccountIDRequest{UserID: 1}, sess, csrf)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(models.AccountIDRequest{UserID: 1}))
	req := httptest.NewRequest(http.MethodPost, "/api/admin/approve", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CSRFHeader, csrf.Value)
	assert.Equal(t, http.StatusOK, s.do(req, sess, csrf).Code)

	// reads are not guarded
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/admin/users", nil), sess)
	assert.Equal(t, http.StatusOK, rec.Code)
}
