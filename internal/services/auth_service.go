package services

import (
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/wanderstay/payments-backend/internal/database"
	"github.com/wanderstay/payments-backend/internal/models"
	"github.com/wanderstay/payments-backend/pkg/jwt"
)

// Auth errors. Login failures deliberately collapse into one message so the
// endpoint never reveals whether an email is registered.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountSuspended   = errors.New("account is suspended")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthService handles login and token refresh
type AuthService struct {
	users      *database.UserRepository
	jwtService *jwt.Service
	logger     *logrus.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(users *database.UserRepository, jwtService *jwt.Service, logger *logrus.Logger) *AuthService {
	return &AuthService{
		users:      users,
		jwtService: jwtService,
		logger:     logger,
	}
}

// Login verifies credentials and issues a token pair
func (s *AuthService) Login(req *models.LoginRequest) (*models.TokenResponse, error) {
	user, err := s.users.GetUserByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Burn a hash comparison anyway to keep response timing flat
		bcrypt.CompareHashAndPassword([]byte("$2a$10$invalidsaltinvalidsaltinvalidsaltinvalidsalt"), []byte(req.Password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.WithField("email", req.Email).Warn("Failed login attempt")
		return nil, ErrInvalidCredentials
	}

	if user.Status != "active" {
		return nil, ErrAccountSuspended
	}

	return s.issueTokens(user)
}

// Refresh exchanges a valid refresh token for a new token pair. Roles are
// re-read from the database so a role change takes effect on next refresh.
func (s *AuthService) Refresh(req *models.RefreshRequest) (*models.TokenResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	if user.Status != "active" {
		return nil, ErrAccountSuspended
	}

	return s.issueTokens(user)
}

func (s *AuthService) issueTokens(user *models.User) (*models.TokenResponse, error) {
	roles := []string(user.Roles)

	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, roles)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("Issued token pair")

	return &models.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtService.AccessTokenExpiry().Seconds()),
		Roles:        roles,
	}, nil
}
