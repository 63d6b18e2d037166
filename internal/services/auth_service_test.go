package services

import (
	"database/sql"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wanderstay/payments-backend/internal/database"
	"github.com/wanderstay/payments-backend/internal/models"
	"github.com/wanderstay/payments-backend/pkg/jwt"
)

// sqlDatabase adapts a raw *sql.DB to the database.DB interface for tests
type sqlDatabase struct {
	db *sql.DB
}

func (m *sqlDatabase) Get(dest interface{}, query string, args ...interface{}) error {
	return fmt.Errorf("Get not implemented in mock")
}

func (m *sqlDatabase) Select(dest interface{}, query string, args ...interface{}) error {
	return fmt.Errorf("Select not implemented in mock")
}

func (m *sqlDatabase) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return m.db.Query(query, args...)
}

func (m *sqlDatabase) QueryRow(query string, args ...interface{}) *sql.Row {
	return m.db.QueryRow(query, args...)
}

func (m *sqlDatabase) Exec(query string, args ...interface{}) (sql.Result, error) {
	return m.db.Exec(query, args...)
}

func (m *sqlDatabase) Close() error { return m.db.Close() }
func (m *sqlDatabase) Ping() error  { return m.db.Ping() }

func setupAuthService(t *testing.T) (*AuthService, sqlmock.Sqlmock, *jwt.Service) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	jwtService := jwt.NewService("test-access-secret", "test-refresh-secret", time.Hour, 24*time.Hour)
	users := database.NewUserRepository(&sqlDatabase{db: db})
	return NewAuthService(users, jwtService, logger), mock, jwtService
}

func userRow(userID uuid.UUID, email, passwordHash, status string, roles string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "full_name", "roles", "status", "created_at", "updated_at",
	}).AddRow(userID, email, passwordHash, "Test User", []byte(roles), status, now, now)
}

func TestLogin(t *testing.T) {
	password := "correct-horse-battery"
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		svc, mock, jwtService := setupAuthService(t)
		userID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
			WithArgs("guest@example.com").
			WillReturnRows(userRow(userID, "guest@example.com", string(hash), "active", `{guest}`))

		tokens, err := svc.Login(&models.LoginRequest{
			Email:    "guest@example.com",
			Password: password,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
		assert.Equal(t, int(time.Hour.Seconds()), tokens.ExpiresIn)
		assert.Equal(t, []string{"guest"}, tokens.Roles)

		// Issued access token carries the user identity
		claims, err := jwtService.ValidateAccessToken(tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Wrong Password", func(t *testing.T) {
		svc, mock, _ := setupAuthService(t)

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
			WithArgs("guest@example.com").
			WillReturnRows(userRow(uuid.New(), "guest@example.com", string(hash), "active", `{guest}`))

		_, err := svc.Login(&models.LoginRequest{
			Email:    "guest@example.com",
			Password: "wrong",
		})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Unknown Email", func(t *testing.T) {
		svc, mock, _ := setupAuthService(t)

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
			WithArgs("nobody@example.com").
			WillReturnError(sql.ErrNoRows)

		_, err := svc.Login(&models.LoginRequest{
			Email:    "nobody@example.com",
			Password: password,
		})
		// Indistinguishable from a wrong password
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Suspended Account", func(t *testing.T) {
		svc, mock, _ := setupAuthService(t)

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
			WithArgs("guest@example.com").
			WillReturnRows(userRow(uuid.New(), "guest@example.com", string(hash), "suspended", `{guest}`))

		_, err := svc.Login(&models.LoginRequest{
			Email:    "guest@example.com",
			Password: password,
		})
		assert.ErrorIs(t, err, ErrAccountSuspended)
	})
}

func TestRefresh(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc, mock, jwtService := setupAuthService(t)
		userID := uuid.New()

		refreshToken, err := jwtService.GenerateRefreshToken(userID, "guest@example.com")
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id`).
			WithArgs(userID).
			WillReturnRows(userRow(userID, "guest@example.com", "$2a$12$hash", "active", `{guest,admin}`))

		tokens, err := svc.Refresh(&models.RefreshRequest{RefreshToken: refreshToken})
		require.NoError(t, err)
		assert.NotEmpty(t, tokens.AccessToken)

		// Roles come from the database, not the old token
		assert.Equal(t, []string{"guest", "admin"}, tokens.Roles)
	})

	t.Run("Garbage Token", func(t *testing.T) {
		svc, _, _ := setupAuthService(t)

		_, err := svc.Refresh(&models.RefreshRequest{RefreshToken: "not-a-jwt"})
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Access Token Cannot Refresh", func(t *testing.T) {
		svc, _, jwtService := setupAuthService(t)

		accessToken, err := jwtService.GenerateAccessToken(uuid.New(), "guest@example.com", []string{"guest"})
		require.NoError(t, err)

		_, err = svc.Refresh(&models.RefreshRequest{RefreshToken: accessToken})
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Deleted User", func(t *testing.T) {
		svc, mock, jwtService := setupAuthService(t)
		userID := uuid.New()

		refreshToken, err := jwtService.GenerateRefreshToken(userID, "gone@example.com")
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id`).
			WithArgs(userID).
			WillReturnError(sql.ErrNoRows)

		_, err = svc.Refresh(&models.RefreshRequest{RefreshToken: refreshToken})
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
