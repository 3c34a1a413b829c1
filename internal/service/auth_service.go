package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kvxlabs/vanguard/internal/domain"
	"github.com/kvxlabs/vanguard/internal/port"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles registration, login, and session lifecycle.
type AuthService struct {
	store      port.Store
	sessionTTL time.Duration
}

// NewAuthService creates an auth service issuing sessions with the given TTL.
func NewAuthService(store port.Store, sessionTTL time.Duration) *AuthService {
	return &AuthService{store: store, sessionTTL: sessionTTL}
}

// Register creates a user with a bcrypt-hashed password and opens a session.
func (s *AuthService) Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, *domain.Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
	})
	if err != nil {
		return nil, nil, err
	}

	session, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Login verifies credentials and opens a session. Unknown email and wrong
// password both return port.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.Session, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, port.ErrUserNotFound) {
		return nil, nil, port.ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil, port.ErrInvalidCredentials
	}

	session, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Logout deletes the session for the given token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.store.DeleteSession(ctx, token)
}

func (s *AuthService) openSession(ctx context.Context, userID string) (*domain.Session, error) {
	session := &domain.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}
