package users

import (
	"context"
	"errors"
	"time"
)

// User is an operator account. Points accumulate from field report
// submissions and drive the contribution ranking.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Points       int       `json:"points"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

var (
	ErrUserNotFound   = errors.New("users: user not found")
	ErrEmailTaken     = errors.New("users: email already registered")
	ErrBadCredentials = errors.New("users: invalid email or password")
	ErrMissingField   = errors.New("users: missing required field")
	ErrInvalidRole    = errors.New("users: invalid role")
)

// ListQuery bounds a user listing.
type ListQuery struct {
	Limit  int
	Offset int
}

// ProfileUpdate is an explicit optional-field account update.
type ProfileUpdate struct {
	Name         *string
	PasswordHash *string
}

// Repository persists user accounts.
type Repository interface {
	// Create stores a user. ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, q ListQuery) ([]*User, error)
	Count(ctx context.Context) (int, error)
	// Rankings returns users ordered by points descending.
	Rankings(ctx context.Context, limit int) ([]*User, error)
	UpdateRole(ctx context.Context, id, role string) (*User, error)
	// UpdateProfile applies an optional-field update to name and/or
	// password hash.
	UpdateProfile(ctx context.Context, id string, up ProfileUpdate) (*User, error)
	// AddPoints atomically increments a user's points.
	AddPoints(ctx context.Context, id string, delta int) (*User, error)
}
