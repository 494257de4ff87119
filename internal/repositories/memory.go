package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"portalauth/internal/models"
)

// MemoryUserRepository is a mutex-guarded UserRepository. Email uniqueness is
// enforced inside Create under the lock, mirroring the unique index in Postgres.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	nextID  int
	byID    map[int]*models.User
	byEmail map[string]int
	now     func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    map[int]*models.User{},
		byEmail: map[string]int{},
		now:     time.Now,
	}
}

func clone(u *models.User) *models.User {
	cp := *u
	return &cp
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[user.Email]; taken {
		return ErrDuplicate
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = r.now()
	r.byID[user.ID] = clone(user)
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *MemoryUserRepository) UpdateApproval(_ context.Context, id int, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.IsApproved = approved
	}
	return nil
}

func (r *MemoryUserRepository) UpdatePasswordHash(_ context.Context, id int, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *MemoryUserRepository) Promote(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.IsAdmin = true
	u.IsApproved = true
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byEmail, u.Email)
	delete(r.byID, id)
	return nil
}

func (r *MemoryUserRepository) List(_ context.Context, filter models.ListFilter) ([]*models.User, error) {
	return r.collect(func(u *models.User) bool {
		return filter != models.FilterPending || !u.IsApproved
	}), nil
}

func (r *MemoryUserRepository) ListApprovedAdmins(_ context.Context) ([]*models.User, error) {
	return r.collect(func(u *models.User) bool { return u.IsAdmin && u.IsApproved }), nil
}

func (r *MemoryUserRepository) collect(keep func(*models.User) bool) []*models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*models.User
	for _, u := range r.byID {
		if keep(u) {
			res = append(res, clone(u))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// MemoryOTPRepository is the in-process OTPRepository.
type MemoryOTPRepository struct {
	mu    sync.Mutex
	codes map[int]models.OTPCode
}

func NewMemoryOTPRepository() *MemoryOTPRepository {
	return &MemoryOTPRepository{codes: map[int]models.OTPCode{}}
}

func (r *MemoryOTPRepository) Upsert(_ context.Context, otp *models.OTPCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := *otp
	rec.UsedAt = nil
	r.codes[otp.UserID] = rec
	return nil
}

func (r *MemoryOTPRepository) GetByUserID(_ context.Context, userID int) (*models.OTPCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.codes[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *MemoryOTPRepository) MarkUsed(_ context.Context, userID int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.codes[userID]
	if !ok || rec.UsedAt != nil {
		return ErrNotFound
	}
	rec.UsedAt = &at
	r.codes[userID] = rec
	return nil
}
