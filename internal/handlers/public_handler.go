package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"portalauth/internal/logger"
	"portalauth/internal/models"
	"portalauth/internal/services"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type PublicHandler struct {
	contact services.ContactService
	db      Pinger
	log     logger.Logger
}

func NewPublicHandler(contact services.ContactService, db Pinger, log logger.Logger) *PublicHandler {
	return &PublicHandler{contact: contact, db: db, log: log.With("component", "http.public")}
}

// @Summary      Contact admins
// @Description  Forwards a visitor message to every approved admin.
// @Tags         Public
// @Accept       json
// @Produce      json
// @Param        body  body      models.ContactAdminRequest  true  "Message"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/public/contact-admin [post]
func (h *PublicHandler) ContactAdmin(c *gin.Context) {
	var req models.ContactAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	n, err := h.contact.ContactAdmin(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, "contact admin", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message sent to admins", "recipients": n})
}

// @Summary      Health
// @Tags         Public
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /healthz [get]
func (h *PublicHandler) Healthz(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.log.Warn("health check: database unreachable", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
