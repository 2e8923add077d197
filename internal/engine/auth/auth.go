package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"opsportal/internal/domain"
)

// ForbiddenError indicates the caller's role is not allowed to act.
type ForbiddenError struct {
	Action string
	Role   string
}

func (e ForbiddenError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("%s requires a known role", e.Action)
	}
	return fmt.Sprintf("role %s may not %s", e.Role, e.Action)
}

// Service resolves roles backed by SQL.
type Service struct {
	DB *sql.DB
}

// UserRole returns the stored role of a user, or "" when the user is unknown.
func (s Service) UserRole(ctx context.Context, tx *sql.Tx, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", nil
	}
	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, `SELECT role FROM users WHERE id=?`, userID)
	} else {
		row = s.DB.QueryRowContext(ctx, `SELECT role FROM users WHERE id=?`, userID)
	}
	var role string
	err := row.Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return role, err
}

// RequireRole fails with ForbiddenError unless role is one of allowed.
func RequireRole(action, role string, allowed ...string) error {
	if role != "" && slices.Contains(allowed, role) {
		return nil
	}
	return ForbiddenError{Action: action, Role: role}
}

// CanWrite reports whether role may change workflow state at all.
func CanWrite(role string) bool {
	switch role {
	case domain.RoleAdmin, domain.RolePM, domain.RoleDev, domain.RoleQA:
		return true
	}
	return false
}
