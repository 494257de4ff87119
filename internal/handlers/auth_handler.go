package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"portalauth/internal/logger"
	"portalauth/internal/middleware"
	"portalauth/internal/models"
	"portalauth/internal/services"
	"portalauth/internal/utils"
)

type AuthHandler struct {
	auth     services.AuthService
	accounts services.AccountService
	cookies  CookieConfig
	log      logger.Logger
}

func NewAuthHandler(auth services.AuthService, accounts services.AccountService, cookies CookieConfig, log logger.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, accounts: accounts, cookies: cookies, log: log.With("component", "http.auth")}
}

// @Summary      Sign up
// @Description  Registers a pending account. Multipart form; profile_pic is optional.
// @Tags         Auth
// @Accept       multipart/form-data
// @Produce      json
// @Param        first_name   formData  string  true   "First name"
// @Param        last_name    formData  string  true   "Last name"
// @Param        email        formData  string  true   "Email"
// @Param        password     formData  string  true   "Password"
// @Param        designation  formData  string  false  "Designation"
// @Param        profile_pic  formData  file    false  "Profile picture"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/auth/signup [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	req := models.RegisterRequest{
		FirstName:   c.PostForm("first_name"),
		LastName:    c.PostForm("last_name"),
		Designation: c.PostForm("designation"),
		Email:       c.PostForm("email"),
		Password:    c.PostForm("password"),
	}

	var pic *services.Upload
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("profile_pic")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			badRequest(c, "invalid profile_pic upload")
			return
		default:
			f, err := fh.Open()
			if err != nil {
				badRequest(c, "invalid profile_pic upload")
				return
			}
			defer func(f multipart.File) { _ = f.Close() }(f)
			pic = &services.Upload{Reader: f, Filename: fh.Filename}
		}
	}

	user, err := h.accounts.Register(c.Request.Context(), req, pic)
	if err != nil {
		writeError(c, h.log, "signup", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"status":  user.Status(),
		"message": "Signup successful. Await admin approval.",
		"user_id": user.ID,
	})
}

// @Summary      Sign in
// @Description  Verifies credentials and sets the session cookie.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        credentials  body      models.SignInRequest  true  "Credentials"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/auth/signin [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req models.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	sess, err := h.auth.SignIn(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, "signin", err)
		return
	}

	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	h.cookies.set(c, h.cookies.Name, sess.Token, maxAge, true)

	body := gin.H{
		"id":         sess.User.ID,
		"email":      sess.User.Email,
		"first_name": sess.User.FirstName,
		"is_admin":   sess.User.IsAdmin,
	}
	if h.cookies.CSRF {
		csrf, err := utils.NewRandomToken(32)
		if err != nil {
			writeError(c, h.log, "signin csrf", err)
			return
		}
		h.cookies.set(c, middleware.CSRFCookieName, csrf, maxAge, false)
		body["csrf_token"] = csrf
	}
	c.JSON(http.StatusOK, body)
}

// @Summary      Sign out
// @Description  Clears the session cookie. Always succeeds.
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/auth/signout [post]
func (h *AuthHandler) SignOut(c *gin.Context) {
	h.cookies.set(c, h.cookies.Name, "", -1, true)
	if h.cookies.CSRF {
		h.cookies.set(c, middleware.CSRFCookieName, "", -1, false)
	}
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

// @Summary      Current user
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  models.PublicUser
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	me, err := h.auth.WhoAmI(c.Request.Context(), callerOf(c))
	if err != nil {
		writeError(c, h.log, "whoami", err)
		return
	}
	c.JSON(http.StatusOK, me)
}

// @Summary      Request password reset
// @Description  Emails a one-time code to the account.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.PasswordResetRequest  true  "Email"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/auth/forgot [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.log, "request reset", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OTP sent to your email"})
}

// @Summary      Reset password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.PasswordResetConfirm  true  "Email, code and new password"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/auth/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.PasswordResetConfirm
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.auth.ConfirmPasswordReset(c.Request.Context(), req); err != nil {
		writeError(c, h.log, "confirm reset", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}
