package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Role names stored in the users.roles array
const (
	RoleGuest = "guest"
	RoleAdmin = "admin"
)

// User represents a platform account. Guests own bookings; admins review
// manual payments through the back office.
type User struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	Email        string         `json:"email" db:"email"`
	PasswordHash string         `json:"-" db:"password_hash"`
	FullName     string         `json:"full_name" db:"full_name"`
	Roles        pq.StringArray `json:"roles" db:"roles"`
	Status       string         `json:"status" db:"status"` // active, suspended
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// HasRole reports whether the user holds the given role
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// LoginRequest is the credentials payload for the auth endpoint
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token to exchange for a new pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse is returned after a successful login or refresh
type TokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"` // seconds
	Roles        []string `json:"roles"`
}
