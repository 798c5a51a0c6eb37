package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quizsets/backend/internal/apperr"
	"github.com/quizsets/backend/internal/database"
	"github.com/quizsets/backend/internal/models"
)

type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO users (id, email, name, role, password, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		u.ID, u.Email, u.Name, u.Role, u.Password, u.CreatedAt)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("account")
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) SetRole(ctx context.Context, id, role string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET role = ? WHERE id = ?`), role, id)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, email, name, role, password, created_at FROM users WHERE email = ?`, email)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, email, name, role, password, created_at FROM users WHERE id = ?`, id)
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
