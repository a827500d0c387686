package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"api-boilerplate/internal/role"
	"api-boilerplate/internal/user"
)

// Compare target for logins against unknown usernames, so "no such user" and
// "wrong password" cost the same and return the same error.
var dummyPasswordHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// UserDirectory is the slice of the user store the auth service needs.
type UserDirectory interface {
	GetByLogin(ctx context.Context, login string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

// RoleDirectory resolves the role a user is bound to.
type RoleDirectory interface {
	GetByID(ctx context.Context, id string) (role.Role, error)
}

// Service orchestrates login, token refresh and authorization. It holds no
// per-request state and caches nothing: every authorize call re-reads the user
// and role, so a role change or deactivation applies on the next request.
type Service struct {
	codec         *Codec
	users         UserDirectory
	roles         RoleDirectory
	rotateRefresh bool
}

func NewService(codec *Codec, users UserDirectory, roles RoleDirectory, rotateRefresh bool) *Service {
	return &Service{
		codec:         codec,
		users:         users,
		roles:         roles,
		rotateRefresh: rotateRefresh,
	}
}

// Login checks the credentials and issues an access/refresh pair. Unknown
// login and wrong password both come back as ErrInvalidCredentials; an
// inactive account is reported only after the password compare has run.
func (s *Service) Login(ctx context.Context, login, password string) (TokenPair, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	password = strings.TrimSpace(password)

	if login == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	account, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	match, err := VerifyPassword(account.PasswordHash, password)
	if err != nil {
		return TokenPair{}, err
	}
	if !account.IsActive {
		return TokenPair{}, ErrAccountInactive
	}
	if !match {
		return TokenPair{}, ErrInvalidCredentials
	}

	return s.issuePair(account.ID)
}

// Refresh validates a refresh token and mints a new access token for its
// subject. The refresh token is reused until expiry unless rotation is
// enabled, in which case a fresh one is returned per call.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	account, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return TokenPair{}, ErrUserNotFound
		}
		return TokenPair{}, err
	}
	if !account.IsActive {
		return TokenPair{}, ErrAccountInactive
	}

	access, _, err := s.codec.Issue(account.ID, TokenAccess)
	if err != nil {
		return TokenPair{}, err
	}

	refresh := strings.TrimSpace(refreshToken)
	if s.rotateRefresh {
		refresh, _, err = s.codec.Issue(account.ID, TokenRefresh)
		if err != nil {
			return TokenPair{}, err
		}
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

// Authorize decodes an access token, re-resolves the user and role from the
// stores and evaluates the permission against the role.
func (s *Service) Authorize(ctx context.Context, accessToken string, perm Permission) (user.User, error) {
	claims, err := s.codec.Decode(accessToken, TokenAccess)
	if err != nil {
		return user.User{}, fmt.Errorf("%w: %s", ErrUnauthenticated, err)
	}

	account, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, fmt.Errorf("%w: subject no longer exists", ErrUnauthenticated)
		}
		return user.User{}, err
	}
	if !account.IsActive {
		return user.User{}, ErrAccountInactive
	}

	assigned, err := s.roles.GetByID(ctx, account.RoleID)
	if err != nil {
		return user.User{}, fmt.Errorf("resolve role for user %s: %w", account.ID, err)
	}
	if !RoleAllows(RoleName(assigned.Name), perm) {
		return user.User{}, ErrForbidden
	}

	return account, nil
}

func (s *Service) issuePair(userID string) (TokenPair, error) {
	access, _, err := s.codec.Issue(userID, TokenAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.codec.Issue(userID, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}
