package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/database"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

var (
	ErrInvalidCredentials = apperrors.Authentication("invalid_credentials", "Invalid email or password")
	ErrEmailTaken         = apperrors.Authentication("email_taken", "An account with this email already exists")
)

// UserRepository persists accounts
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenIssuer signs access tokens
type TokenIssuer interface {
	GenerateToken(userID, email string) (string, time.Time, error)
}

// Service registers and authenticates accounts
type Service struct {
	users  UserRepository
	tokens TokenIssuer
	logger *logging.Logger
}

// NewService creates an authentication service
func NewService(users UserRepository, tokens TokenIssuer, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{users: users, tokens: tokens, logger: logger}
}

// SignUp creates an account and returns its first session
func (s *Service) SignUp(ctx context.Context, creds models.Credentials) (*models.Session, error) {
	if err := ValidateCredentials(creds); err != nil {
		return nil, err
	}

	hash, err := HashPassword(creds.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	user := &models.User{Email: strings.TrimSpace(creds.Email), PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			s.logger.Info("Signup with existing email")
			return nil, ErrEmailTaken
		}
		return nil, apperrors.Wrap(err, apperrors.KindTransient, "signup_failed", "Could not create account. Please try again.")
	}

	s.logger.WithUserID(user.ID).Info("Account created")
	return s.issue(user)
}

// SignIn verifies credentials and returns a new session
func (s *Service) SignIn(ctx context.Context, creds models.Credentials) (*models.Session, error) {
	if err := ValidateCredentials(creds); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(creds.Email))
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindTransient, "signin_failed", "Could not sign in. Please try again.")
	}

	if !CheckPassword(user.PasswordHash, creds.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// Refresh issues a new session for an already authenticated user
func (s *Service) Refresh(userID, email string) (*models.Session, error) {
	return s.issue(&models.User{ID: userID, Email: email})
}

func (s *Service) issue(user *models.User) (*models.Session, error) {
	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &models.Session{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        models.User{ID: user.ID, Email: user.Email},
	}, nil
}
