package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"powerplant-cloud/internal/auth"
	users "powerplant-cloud/internal/users/domain"
)

const defaultTokenTTL = 24 * time.Hour

// Clock provides time for the user service.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

// Now returns current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Service implements account registration, login and rankings.
type Service struct {
	repo     users.Repository
	secret   []byte
	tokenTTL time.Duration
	clock    Clock
}

// NewService constructs a user service.
func NewService(repo users.Repository, secret []byte, clock Clock) (*Service, error) {
	if repo == nil {
		return nil, errors.New("users service: nil repository")
	}
	if len(secret) == 0 {
		return nil, errors.New("users service: empty jwt secret")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{repo: repo, secret: secret, tokenTTL: defaultTokenTTL, clock: clock}, nil
}

// RegisterInput is the account creation payload.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
	Role     string
}

// Register creates an account with a bcrypt password hash. An empty role
// defaults to viewer.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*users.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" || strings.TrimSpace(in.Name) == "" {
		return nil, users.ErrMissingField
	}
	role := in.Role
	if role == "" {
		role = string(auth.RoleViewer)
	}
	if _, ok := auth.NormalizeRole(role); !ok {
		return nil, users.ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &users.User{
		ID:           newID(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
		UpdatedAt:    s.clock.Now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// LoginResult carries the issued token and the account.
type LoginResult struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

// Login verifies credentials and issues a signed token. Lookup and password
// failures collapse into ErrBadCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, users.ErrBadCredentials
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, users.ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, users.ErrBadCredentials
	}

	role, _ := auth.NormalizeRole(user.Role)
	token, err := auth.SignJWT(user.ID, user.Email, role, s.secret, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user}, nil
}

// UserPage is one page of users with the total account count.
type UserPage struct {
	Users []*users.User `json:"users"`
	Total int           `json:"total"`
}

// List returns a page of users and the total count. The page and the count
// are fetched concurrently.
func (s *Service) List(ctx context.Context, q users.ListQuery) (*UserPage, error) {
	var (
		wg       sync.WaitGroup
		page     []*users.User
		total    int
		listErr  error
		countErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		page, listErr = s.repo.List(ctx, q)
	}()
	go func() {
		defer wg.Done()
		total, countErr = s.repo.Count(ctx)
	}()
	wg.Wait()

	if listErr != nil {
		return nil, listErr
	}
	if countErr != nil {
		return nil, countErr
	}
	return &UserPage{Users: page, Total: total}, nil
}

// Rankings returns the top contributors by points.
func (s *Service) Rankings(ctx context.Context, limit int) ([]*users.User, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.Rankings(ctx, limit)
}

// Get loads one account.
func (s *Service) Get(ctx context.Context, id string) (*users.User, error) {
	if id == "" {
		return nil, users.ErrMissingField
	}
	return s.repo.Get(ctx, id)
}

// UpdateRole changes an account's role.
func (s *Service) UpdateRole(ctx context.Context, id, role string) (*users.User, error) {
	if id == "" {
		return nil, users.ErrMissingField
	}
	if _, ok := auth.NormalizeRole(role); !ok {
		return nil, users.ErrInvalidRole
	}
	return s.repo.UpdateRole(ctx, id, role)
}

// UpdateProfile changes an account's display name.
func (s *Service) UpdateProfile(ctx context.Context, id string, name *string) (*users.User, error) {
	if id == "" {
		return nil, users.ErrMissingField
	}
	update := users.ProfileUpdate{}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, users.ErrMissingField
		}
		update.Name = &trimmed
	}
	return s.repo.UpdateProfile(ctx, id, update)
}

// ChangePassword verifies the current password and stores a hash of the new
// one. Verification failure reports ErrBadCredentials, same as login.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	if id == "" || next == "" {
		return users.ErrMissingField
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return users.ErrBadCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	hashed := string(hash)
	_, err = s.repo.UpdateProfile(ctx, id, users.ProfileUpdate{PasswordHash: &hashed})
	return err
}

// AwardPoints credits contribution points to an account.
func (s *Service) AwardPoints(ctx context.Context, id string, delta int) (*users.User, error) {
	if id == "" {
		return nil, users.ErrMissingField
	}
	return s.repo.AddPoints(ctx, id, delta)
}

func newID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "user-" + hex.EncodeToString(buf)
}
