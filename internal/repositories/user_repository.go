package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"portalauth/internal/models"
)

type UserRepository interface {
	// Create inserts the user and fills ID/CreatedAt. A taken email yields ErrDuplicate.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateApproval(ctx context.Context, id int, approved bool) error
	UpdatePasswordHash(ctx context.Context, id int, hash string) error
	Delete(ctx context.Context, id int) error
	List(ctx context.Context, filter models.ListFilter) ([]*models.User, error)
	ListApprovedAdmins(ctx context.Context) ([]*models.User, error)
	// Promote grants admin and approves in one statement. Only reachable from the CLI.
	Promote(ctx context.Context, id int) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `id, first_name, last_name, designation, email, password_hash,
			profile_pic, is_admin, is_approved, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var (
		designation sql.NullString
		profilePic  sql.NullString
	)
	if err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &designation, &u.Email, &u.PasswordHash,
		&profilePic, &u.IsAdmin, &u.IsApproved, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	if designation.Valid {
		s := designation.String
		u.Designation = &s
	}
	if profilePic.Valid {
		s := profilePic.String
		u.ProfilePic = &s
	}
	return u, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO users (
			first_name, last_name, designation, email, password_hash,
			profile_pic, is_admin, is_approved
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at
	`
	err := r.DB.QueryRowContext(ctx, q,
		user.FirstName,
		user.LastName,
		user.Designation,
		user.Email,
		user.PasswordHash,
		user.ProfilePic,
		user.IsAdmin,
		user.IsApproved,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("users create: %w", err)
	}
	return nil
}

func (r *userRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users get: %w", err)
	}
	return u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByEmail is an exact, case-sensitive match.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email = $1", email)
}

func (r *userRepository) UpdateApproval(ctx context.Context, id int, approved bool) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET is_approved=$1 WHERE id=$2`, approved, id)
	if err != nil {
		return fmt.Errorf("users update approval: %w", err)
	}
	return nil
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, id int, hash string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, hash, id)
	if err != nil {
		return fmt.Errorf("users update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("users update password: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) Promote(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET is_admin=TRUE, is_approved=TRUE WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("users promote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("users promote: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("users delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("users delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, filter models.ListFilter) ([]*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users`
	if filter == models.FilterPending {
		q += ` WHERE is_approved = FALSE`
	}
	q += ` ORDER BY id`
	return r.query(ctx, q)
}

func (r *userRepository) ListApprovedAdmins(ctx context.Context) ([]*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE is_admin = TRUE AND is_approved = TRUE ORDER BY id`
	return r.query(ctx, q)
}

func (r *userRepository) query(ctx context.Context, q string, args ...any) ([]*models.User, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("users list: %w", err)
	}
	defer rows.Close()

	var res []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users list scan: %w", err)
		}
		res = append(res, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users list: %w", err)
	}
	return res, nil
}
