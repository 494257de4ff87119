package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portalauth/internal/logger"
	"portalauth/internal/models"
	"portalauth/internal/services"
)

type AdminHandler struct {
	accounts services.AccountService
	log      logger.Logger
}

func NewAdminHandler(accounts services.AccountService, log logger.Logger) *AdminHandler {
	return &AdminHandler{accounts: accounts, log: log.With("component", "http.admin")}
}

// @Summary      List accounts
// @Tags         Admin
// @Produce      json
// @Param        status  query     string  false  "pending to list only unapproved accounts"
// @Success      200  {array}   models.PublicUser
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.accounts.List(c.Request.Context(), callerOf(c), models.ParseListFilter(c.Query("status")))
	if err != nil {
		writeError(c, h.log, "list users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// @Summary      Approve account
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        body  body      models.AccountIDRequest  true  "Account"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/admin/approve [post]
func (h *AdminHandler) Approve(c *gin.Context) {
	var req models.AccountIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.accounts.Approve(c.Request.Context(), callerOf(c), req.UserID); err != nil {
		writeError(c, h.log, "approve", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User approved"})
}

// @Summary      Reject account
// @Description  Notifies the applicant and deletes the pending account.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        body  body      models.AccountIDRequest  true  "Account"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/admin/reject [post]
func (h *AdminHandler) Reject(c *gin.Context) {
	var req models.AccountIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.accounts.Reject(c.Request.Context(), callerOf(c), req.UserID); err != nil {
		writeError(c, h.log, "reject", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User rejected and deleted"})
}

// @Summary      Delete account
// @Tags         Admin
// @Produce      json
// @Param        id   path      int  true  "Account ID"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		badRequest(c, "invalid user id")
		return
	}
	if err := h.accounts.Delete(c.Request.Context(), callerOf(c), id); err != nil {
		writeError(c, h.log, "delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}
