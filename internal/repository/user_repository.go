package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/duohabit/duohabit/internal/model"
	"github.com/duohabit/duohabit/internal/utils"
)

// UserRepo reads and writes the users table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// Create inserts a user and returns its generated id.
func (r *UserRepo) Create(ctx context.Context, email, password, name string, cost int) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, name) VALUES (?,?,?,?)",
		id, email, hash, strings.TrimSpace(name))
	if err != nil {
		if isDuplicate(err) {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,name,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,name,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetProfile fetches the public id+name slice of a user. Returns
// sql.ErrNoRows when the account no longer exists; the partner
// resolver treats that as "no partner", not as an error.
func (r *UserRepo) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	var p model.Profile
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name FROM users WHERE id=? LIMIT 1",
		id).Scan(&p.ID, &p.Name)
	return p, err
}

// UpdateName changes the display name, the only mutable profile field.
func (r *UserRepo) UpdateName(ctx context.Context, id, name string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=? WHERE id=?",
		strings.TrimSpace(name), id)
	return err
}
