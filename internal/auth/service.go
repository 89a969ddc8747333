package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/meakaliaG/cocanvas-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// usernamePattern matches allowed usernames: alphanumerics plus _-. up to 16 chars.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-.]{1,16}$`)

// Service provides authentication operations.
type Service struct {
	store     store.AccountStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(accountStore store.AccountStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     accountStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new account with hashed password and returns a JWT token.
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return "", ErrInvalidUsername
	}
	if len(password) < 6 {
		return "", ErrInvalidPassword
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	account, err := s.store.CreateAccount(ctx, username, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", ErrUserExists
		}
		return "", fmt.Errorf("create account: %w", err)
	}

	return GenerateToken(s.jwtConfig, account.ID, account.Username, false)
}

// Login verifies credentials and returns a JWT token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	account, err := s.store.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("get account: %w", err)
	}

	if err := ComparePassword(account.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	if err := s.store.TouchLastLogin(ctx, account.ID); err != nil {
		return "", fmt.Errorf("touch last login: %w", err)
	}

	return GenerateToken(s.jwtConfig, account.ID, account.Username, false)
}

// CreateGuest creates a guest account and returns a token plus the session ID.
func (s *Service) CreateGuest(ctx context.Context) (token, sessionID string, err error) {
	sessionID = uuid.NewString()

	account, err := s.store.CreateGuestAccount(ctx, sessionID)
	if err != nil {
		return "", "", fmt.Errorf("create guest account: %w", err)
	}

	token, err = GenerateToken(s.jwtConfig, account.ID, account.Username, true)
	if err != nil {
		return "", "", err
	}
	return token, sessionID, nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *Service) ChangePassword(ctx context.Context, accountID int64, current, next string) error {
	if len(next) < 6 {
		return ErrInvalidPassword
	}

	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if err := ComparePassword(account.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}

	hashedPassword, err := HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.store.UpdatePassword(ctx, accountID, hashedPassword)
}

// ValidateToken validates a JWT token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
