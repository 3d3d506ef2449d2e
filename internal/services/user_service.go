package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/knowreal/knowreal-backend/internal/models"
	"github.com/knowreal/knowreal-backend/pkg/utils"
	"github.com/lib/pq"
)

// UserService owns accounts in the Postgres users table.
type UserService struct {
	db *sql.DB
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// Signup creates an account. The username is stored lowercase.
func (s *UserService) Signup(ctx context.Context, username, password string) (*models.User, error) {
	if err := utils.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, err
	}
	normalized := utils.NormalizeUsername(username)

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     normalized,
		IsActive:     true,
		PasswordHash: hash,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, username, password_hash, created_at, is_active)
		VALUES ($1, $2, $3, NOW(), TRUE)
		RETURNING created_at
	`, user.ID, normalized, hash).Scan(&user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Signin checks credentials. Unknown users and wrong passwords are indistinguishable.
func (s *UserService) Signin(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.findBy(ctx, `WHERE LOWER(username) = $1`, utils.NormalizeUsername(username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	valid, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil || !valid {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID returns an active user, or sql.ErrNoRows.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, sql.ErrNoRows
	}
	user, err := s.findBy(ctx, `WHERE id = $1 AND is_active = TRUE`, parsedID.String())
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) findBy(ctx context.Context, where string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at, is_active
		FROM users `+where, arg).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt, &user.IsActive)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
