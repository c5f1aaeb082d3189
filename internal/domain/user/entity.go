// Package user holds the account identity that the rest of the core refers to.
package user

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

// User is a registered account. ID never changes.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// New validates and builds a user.
func New(id, username, displayName string, now time.Time) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.ErrInvalidUserID
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(username) {
		return nil, shared.ErrInvalidUsername
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, shared.ErrEmptyDisplayName
	}
	return &User{
		ID:          id,
		Username:    username,
		DisplayName: displayName,
		CreatedAt:   now,
	}, nil
}

// Repository stores users.
type Repository interface {
	// Create inserts the user together with a zeroed statistics row in one
	// transaction.
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)

	// ListIDs returns every user id.
	ListIDs(ctx context.Context) ([]string, error)

	// DisplayNames resolves display names for the given ids.
	DisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}
