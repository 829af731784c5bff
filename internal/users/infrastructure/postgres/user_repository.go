package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	users "powerplant-cloud/internal/users/domain"
)

const pgUniqueViolation = "23505"

// UserRepository is a Postgres implementation of the user store.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository constructs a repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, email, name, role, points, password_hash, created_at, updated_at`

// Create stores a user, translating the unique-email violation.
func (r *UserRepository) Create(ctx context.Context, user *users.User) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, email, name, role, points, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		user.ID, user.Email, user.Name, user.Role, user.Points, user.PasswordHash, user.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return users.ErrEmailTaken
		}
		return err
	}
	return nil
}

// Get loads a user by id.
func (r *UserRepository) Get(ctx context.Context, id string) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT`+userColumns+`
FROM users
WHERE id = $1
LIMIT 1`, id)
	return scanUser(row)
}

// GetByEmail loads a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT`+userColumns+`
FROM users
WHERE email = $1
LIMIT 1`, email)
	return scanUser(row)
}

// List returns users newest first.
func (r *UserRepository) List(ctx context.Context, q users.ListQuery) ([]*users.User, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT`+userColumns+`
FROM users
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`, limit, q.Offset)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// Count returns the total number of accounts.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// Rankings returns users by points descending.
func (r *UserRepository) Rankings(ctx context.Context, limit int) ([]*users.User, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT`+userColumns+`
FROM users
ORDER BY points DESC, created_at ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// UpdateRole changes a user's role.
func (r *UserRepository) UpdateRole(ctx context.Context, id, role string) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE users
SET role = $2, updated_at = NOW()
WHERE id = $1
RETURNING`+userColumns, id, role)
	return scanUser(row)
}

// UpdateProfile applies an optional-field update.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, up users.ProfileUpdate) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE users
SET name = COALESCE($2, name),
    password_hash = COALESCE($3, password_hash),
    updated_at = NOW()
WHERE id = $1
RETURNING`+userColumns, id, up.Name, up.PasswordHash)
	return scanUser(row)
}

// AddPoints atomically increments a user's points.
func (r *UserRepository) AddPoints(ctx context.Context, id string, delta int) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE users
SET points = points + $2, updated_at = NOW()
WHERE id = $1
RETURNING`+userColumns, id, delta)
	return scanUser(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*users.User, error) {
	var user users.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.Points,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return &user, nil
}

func collectUsers(rows *sql.Rows) ([]*users.User, error) {
	defer rows.Close()
	var result []*users.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
