package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"portalauth/internal/authz"
	"portalauth/internal/logger"
	"portalauth/internal/metrics"
	"portalauth/internal/models"
	"portalauth/internal/repositories"
	"portalauth/internal/storage"
)

// Upload is an optional profile picture attached to a registration.
type Upload struct {
	Reader   io.Reader
	Filename string
}

// AccountService owns the account state machine:
// pending -> approved, pending -> deleted (reject), approved -> deleted.
type AccountService interface {
	Register(ctx context.Context, req models.RegisterRequest, pic *Upload) (*models.User, error)
	Approve(ctx context.Context, caller authz.Caller, id int) error
	Reject(ctx context.Context, caller authz.Caller, id int) error
	Delete(ctx context.Context, caller authz.Caller, id int) error
	List(ctx context.Context, caller authz.Caller, filter models.ListFilter) ([]models.PublicUser, error)
}

type accountService struct {
	repo      repositories.UserRepository
	hasher    PasswordHasher
	uploads   storage.UploadStore
	notify    Dispatcher
	templates EmailTemplates
	log       logger.Logger
	metrics   *metrics.Metrics
}

func NewAccountService(
	repo repositories.UserRepository,
	hasher PasswordHasher,
	uploads storage.UploadStore,
	notify Dispatcher,
	templates EmailTemplates,
	log logger.Logger,
	m *metrics.Metrics,
) AccountService {
	return &accountService{
		repo:      repo,
		hasher:    hasher,
		uploads:   uploads,
		notify:    notify,
		templates: templates,
		log:       log.With("component", "accounts"),
		metrics:   m,
	}
}

func requireAdmin(caller authz.Caller) error {
	if !caller.Authenticated() {
		return ErrAuthentication
	}
	if !caller.IsAdmin {
		return ErrForbidden
	}
	return nil
}

func validAccountID(id int) error {
	if id <= 0 {
		return &ValidationError{Field: "user_id", Reason: "must be a positive integer"}
	}
	return nil
}

func (s *accountService) Register(ctx context.Context, req models.RegisterRequest, pic *Upload) (*models.User, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.Designation = strings.TrimSpace(req.Designation)

	switch {
	case req.FirstName == "":
		return nil, required("first_name")
	case req.LastName == "":
		return nil, required("last_name")
	case req.Email == "":
		return nil, required("email")
	case req.Password == "":
		return nil, required("password")
	}

	// Fast path only. Concurrent signups are settled by the store's unique constraint.
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if req.Designation != "" {
		d := req.Designation
		user.Designation = &d
	}

	if pic != nil && pic.Reader != nil && s.uploads != nil {
		ref, err := s.uploads.Save(ctx, pic.Reader, pic.Filename)
		if err != nil {
			return nil, fmt.Errorf("save profile picture: %w", err)
		}
		user.ProfilePic = &ref
	}

	if err := s.repo.Create(ctx, user); err != nil {
		s.discardUpload(ctx, user.ProfilePic)
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("account registered", "user_id", user.ID, "email", user.Email)
	s.metrics.Transition("register")
	return user, nil
}

func (s *accountService) discardUpload(ctx context.Context, ref *string) {
	if ref == nil || s.uploads == nil {
		return
	}
	if err := s.uploads.Remove(ctx, *ref); err != nil {
		s.log.Warn("remove orphaned upload", "ref", *ref, "err", err)
	}
}

func (s *accountService) Approve(ctx context.Context, caller authz.Caller, id int) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if err := validAccountID(id); err != nil {
		return err
	}

	if err := s.repo.UpdateApproval(ctx, id, true); err != nil {
		return fmt.Errorf("approve user %d: %w", id, err)
	}
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound("user")
	}
	if err != nil {
		return fmt.Errorf("load user %d: %w", id, err)
	}

	s.log.Info("account approved", "user_id", id, "by", caller.ID)
	s.metrics.Transition("approve")
	s.send(user.Email, s.templates.Approved(user.FirstName))
	return nil
}

// Reject notifies first so the message carries the data read before deletion.
func (s *accountService) Reject(ctx context.Context, caller authz.Caller, id int) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if err := validAccountID(id); err != nil {
		return err
	}

	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound("user")
	}
	if err != nil {
		return fmt.Errorf("load user %d: %w", id, err)
	}

	s.send(user.Email, s.templates.Rejected(user.FirstName))

	if err := s.remove(ctx, id); err != nil {
		return err
	}
	s.discardUpload(ctx, user.ProfilePic)

	s.log.Info("account rejected", "user_id", id, "email", user.Email, "by", caller.ID)
	s.metrics.Transition("reject")
	return nil
}

func (s *accountService) Delete(ctx context.Context, caller authz.Caller, id int) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if err := validAccountID(id); err != nil {
		return err
	}

	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound("user")
	}
	if err != nil {
		return fmt.Errorf("load user %d: %w", id, err)
	}

	if err := s.remove(ctx, id); err != nil {
		return err
	}
	s.discardUpload(ctx, user.ProfilePic)

	s.log.Info("account deleted", "user_id", id, "email", user.Email, "by", caller.ID)
	s.metrics.Transition("delete")
	s.send(user.Email, s.templates.Deleted(user.FirstName))
	return nil
}

func (s *accountService) remove(ctx context.Context, id int) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		// lost a race with another admin
		return notFound("user")
	}
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return nil
}

func (s *accountService) List(ctx context.Context, caller authz.Caller, filter models.ListFilter) ([]models.PublicUser, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *accountService) send(to string, n Notification) {
	if s.notify == nil {
		return
	}
	n.To = to
	s.notify.Dispatch(n)
}
