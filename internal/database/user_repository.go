package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/wanderstay/payments-backend/internal/models"
)

// UserRepository handles user account lookups and role checks
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, full_name, roles, status, created_at, updated_at`

// GetUserByID retrieves a user by id. Returns (nil, nil) when no row exists.
func (r *UserRepository) GetUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err := r.db.QueryRow(query, userID).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FullName,
		&user.Roles, &user.Status, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email. Returns (nil, nil) when no row exists.
func (r *UserRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	err := r.db.QueryRow(query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FullName,
		&user.Roles, &user.Status, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// HasRole reports whether the user holds the given role. This is the single
// authorization check point; handlers never query roles directly.
func (r *UserRepository) HasRole(userID uuid.UUID, role string) (bool, error) {
	var hasRole bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND $2 = ANY(roles) AND status = 'active')`

	if err := r.db.QueryRow(query, userID, role).Scan(&hasRole); err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return hasRole, nil
}
