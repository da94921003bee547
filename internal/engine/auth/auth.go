package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"doandearn/internal/domain"
	"doandearn/internal/repo"
)

// ForbiddenError indicates the caller's role may not run an operation.
type ForbiddenError struct {
	Role string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("role %s required", e.Role)
}

// UnknownAccountError indicates an authenticated identity with no account.
type UnknownAccountError struct {
	Email string
}

func (e UnknownAccountError) Error() string {
	return fmt.Sprintf("no account for %s", e.Email)
}

// Service resolves account roles from the ledger store.
type Service struct {
	Repo repo.Repo
}

// Role returns the stored role for email.
func (s Service) Role(ctx context.Context, email string) (string, error) {
	u, err := s.Repo.GetUser(ctx, nil, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", UnknownAccountError{Email: email}
		}
		return "", err
	}
	return u.Role, nil
}

// RequireRole passes when email holds one of roles. Admins are not implied.
func (s Service) RequireRole(ctx context.Context, email string, roles ...string) (string, error) {
	role, err := s.Role(ctx, email)
	if err != nil {
		return "", err
	}
	for _, r := range roles {
		if r == role {
			return role, nil
		}
	}
	return role, ForbiddenError{Role: strings.Join(roles, "|")}
}

// RequireSelfOrAdmin passes when email is target or an admin.
func (s Service) RequireSelfOrAdmin(ctx context.Context, email, target string) (string, error) {
	role, err := s.Role(ctx, email)
	if err != nil {
		return "", err
	}
	if email == target || role == domain.RoleAdmin {
		return role, nil
	}
	return role, ForbiddenError{Role: domain.RoleAdmin}
}
