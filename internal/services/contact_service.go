package services

import (
	"context"
	"fmt"
	"strings"

	"portalauth/internal/logger"
	"portalauth/internal/models"
	"portalauth/internal/repositories"
)

// ContactService fans a visitor message out to every approved admin.
type ContactService interface {
	ContactAdmin(ctx context.Context, req models.ContactAdminRequest) (int, error)
}

type contactService struct {
	repo      repositories.UserRepository
	notify    Dispatcher
	templates EmailTemplates
	log       logger.Logger
}

func NewContactService(repo repositories.UserRepository, notify Dispatcher, templates EmailTemplates, log logger.Logger) ContactService {
	return &contactService{
		repo:      repo,
		notify:    notify,
		templates: templates,
		log:       log.With("component", "contact"),
	}
}

// ContactAdmin returns how many admins the message was queued for.
func (s *contactService) ContactAdmin(ctx context.Context, req models.ContactAdminRequest) (int, error) {
	from := strings.TrimSpace(req.Email)
	msg := strings.TrimSpace(req.Message)
	if from == "" {
		return 0, required("email")
	}
	if msg == "" {
		return 0, required("message")
	}

	admins, err := s.repo.ListApprovedAdmins(ctx)
	if err != nil {
		return 0, fmt.Errorf("list admins: %w", err)
	}
	if len(admins) == 0 {
		return 0, notFound("admin")
	}

	tmpl := s.templates.ContactMessage(from, req.Phone, msg)
	for _, a := range admins {
		n := tmpl
		n.To = a.Email
		s.notify.Dispatch(n)
	}
	s.log.Info("contact message queued", "from", from, "admins", len(admins))
	return len(admins), nil
}
