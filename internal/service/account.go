package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/finance/internal/auth"
	"github.com/efreitasn/finance/internal/domain"
	"github.com/efreitasn/finance/internal/store"
)

const maxUsernameLen = 64

// RegisterRequest represents the input for account registration.
type RegisterRequest struct {
	Username     string
	Password     string
	Confirmation string
}

// Session is an authenticated user together with a signed token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// AccountService handles registration, login and token verification.
type AccountService struct {
	store       store.Store
	tokens      *auth.TokenIssuer
	initialCash int64
	logger      *slog.Logger
}

// NewAccountService creates a new AccountService. New users are credited
// initialCash cents.
func NewAccountService(st store.Store, tokens *auth.TokenIssuer, initialCash int64, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:       st,
		tokens:      tokens,
		initialCash: initialCash,
		logger:      logger,
	}
}

// Register validates the request, creates the user and logs them in.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, &domain.ValidationError{Message: "username is required"}
	}
	if len(username) > maxUsernameLen {
		return nil, &domain.ValidationError{Message: "username must be at most 64 characters"}
	}
	if req.Password == "" {
		return nil, &domain.ValidationError{Message: "password is required"}
	}
	if len(req.Password) > auth.MaxPasswordLen {
		return nil, &domain.ValidationError{Message: "password must be at most 72 bytes"}
	}
	if req.Password != req.Confirmation {
		return nil, &domain.ValidationError{Message: "passwords do not match"}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Cash:         s.initialCash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	return s.session(user)
}

// Login checks credentials and returns a new session. Unknown usernames
// and wrong passwords both yield domain.ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &domain.ValidationError{Message: "username is required"}
	}
	if password == "" {
		return nil, &domain.ValidationError{Message: "password is required"}
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return s.session(user)
}

// Authenticate verifies a session token and returns its user ID.
func (s *AccountService) Authenticate(token string) (string, error) {
	return s.tokens.Verify(token)
}

func (s *AccountService) session(user *domain.User) (*Session, error) {
	token, expires, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: expires}, nil
}
