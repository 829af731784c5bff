package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"powerplant-cloud/internal/auth"
	users "powerplant-cloud/internal/users/domain"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type memoryUsers struct {
	mu   sync.Mutex
	rows map[string]*users.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{rows: make(map[string]*users.User)}
}

func (m *memoryUsers) Create(ctx context.Context, user *users.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Email == user.Email {
			return users.ErrEmailTaken
		}
	}
	copied := *user
	m.rows[user.ID] = &copied
	return nil
}

func (m *memoryUsers) Get(ctx context.Context, id string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.rows[id]
	if row == nil {
		return nil, users.ErrUserNotFound
	}
	copied := *row
	return &copied, nil
}

func (m *memoryUsers) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == email {
			copied := *row
			return &copied, nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (m *memoryUsers) List(ctx context.Context, q users.ListQuery) ([]*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*users.User
	for _, row := range m.rows {
		copied := *row
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	return result, nil
}

func (m *memoryUsers) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

func (m *memoryUsers) Rankings(ctx context.Context, limit int) ([]*users.User, error) {
	list, _ := m.List(ctx, users.ListQuery{})
	sort.Slice(list, func(i, j int) bool { return list[i].Points > list[j].Points })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *memoryUsers) UpdateRole(ctx context.Context, id, role string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.rows[id]
	if row == nil {
		return nil, users.ErrUserNotFound
	}
	row.Role = role
	copied := *row
	return &copied, nil
}

func (m *memoryUsers) UpdateProfile(ctx context.Context, id string, up users.ProfileUpdate) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.rows[id]
	if row == nil {
		return nil, users.ErrUserNotFound
	}
	if up.Name != nil {
		row.Name = *up.Name
	}
	if up.PasswordHash != nil {
		row.PasswordHash = *up.PasswordHash
	}
	copied := *row
	return &copied, nil
}

func (m *memoryUsers) AddPoints(ctx context.Context, id string, delta int) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.rows[id]
	if row == nil {
		return nil, users.ErrUserNotFound
	}
	row.Points += delta
	copied := *row
	return &copied, nil
}

const testSecret = "summaries-test-secret"

func newUserService(t *testing.T) (*Service, *memoryUsers) {
	t.Helper()
	repo := newMemoryUsers()
	service, err := NewService(repo, []byte(testSecret), fixedClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service, repo
}

func TestRegisterDefaultsToViewer(t *testing.T) {
	service, _ := newUserService(t)

	user, err := service.Register(context.Background(), RegisterInput{
		Email:    "  Operator@Example.Com ",
		Name:     "Budi",
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "operator@example.com" {
		t.Errorf("email = %q, want lowercased trimmed form", user.Email)
	}
	if user.Role != string(auth.RoleViewer) {
		t.Errorf("role = %q, want viewer default", user.Role)
	}
	if user.PasswordHash == "hunter2" || user.PasswordHash == "" {
		t.Error("password must be stored as a hash")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service, _ := newUserService(t)
	ctx := context.Background()

	in := RegisterInput{Email: "a@example.com", Name: "A", Password: "pw"}
	if _, err := service.Register(ctx, in); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := service.Register(ctx, in); !errors.Is(err, users.ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	service, _ := newUserService(t)
	_, err := service.Register(context.Background(), RegisterInput{Email: "a@example.com", Name: "A", Password: "pw", Role: "root"})
	if !errors.Is(err, users.ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
}

func TestLoginIssuesParsableToken(t *testing.T) {
	service, _ := newUserService(t)
	ctx := context.Background()

	registered, err := service.Register(ctx, RegisterInput{Email: "a@example.com", Name: "A", Password: "pw", Role: "operator"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := service.Login(ctx, "A@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := auth.ParseJWT(result.Token, []byte(testSecret))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != registered.ID {
		t.Errorf("subject = %q, want %q", claims.Subject, registered.ID)
	}
	if claims.Role != "operator" {
		t.Errorf("role claim = %q, want operator", claims.Role)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	service, _ := newUserService(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, RegisterInput{Email: "a@example.com", Name: "A", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := service.Login(ctx, "a@example.com", "wrong"); !errors.Is(err, users.ErrBadCredentials) {
		t.Errorf("wrong password: err = %v, want ErrBadCredentials", err)
	}
	if _, err := service.Login(ctx, "missing@example.com", "pw"); !errors.Is(err, users.ErrBadCredentials) {
		t.Errorf("unknown email: err = %v, want ErrBadCredentials", err)
	}
}

func TestChangePassword(t *testing.T) {
	service, _ := newUserService(t)
	ctx := context.Background()

	user, _ := service.Register(ctx, RegisterInput{Email: "a@example.com", Name: "A", Password: "old-pw"})

	if err := service.ChangePassword(ctx, user.ID, "wrong", "new-pw"); !errors.Is(err, users.ErrBadCredentials) {
		t.Fatalf("wrong current password: err = %v, want ErrBadCredentials", err)
	}
	if err := service.ChangePassword(ctx, user.ID, "old-pw", "new-pw"); err != nil {
		t.Fatalf("change: %v", err)
	}

	if _, err := service.Login(ctx, "a@example.com", "old-pw"); !errors.Is(err, users.ErrBadCredentials) {
		t.Errorf("old password still accepted after change")
	}
	if _, err := service.Login(ctx, "a@example.com", "new-pw"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestAwardPointsFeedsRankings(t *testing.T) {
	service, _ := newUserService(t)
	ctx := context.Background()

	first, _ := service.Register(ctx, RegisterInput{Email: "a@example.com", Name: "A", Password: "pw"})
	second, _ := service.Register(ctx, RegisterInput{Email: "b@example.com", Name: "B", Password: "pw"})

	if _, err := service.AwardPoints(ctx, second.ID, 100); err != nil {
		t.Fatalf("award: %v", err)
	}
	if _, err := service.AwardPoints(ctx, first.ID, 50); err != nil {
		t.Fatalf("award: %v", err)
	}

	top, err := service.Rankings(ctx, 1)
	if err != nil {
		t.Fatalf("rankings: %v", err)
	}
	if len(top) != 1 || top[0].ID != second.ID {
		t.Errorf("top contributor = %+v, want %s", top, second.ID)
	}
}

func TestListReturnsPageWithTotal(t *testing.T) {
	service, _ := newUserService(t)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if _, err := service.Register(ctx, RegisterInput{Email: email, Name: "X", Password: "pw"}); err != nil {
			t.Fatalf("register %s: %v", email, err)
		}
	}

	page, err := service.List(ctx, users.ListQuery{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || len(page.Users) != 3 {
		t.Errorf("page = %d users / total %d, want 3/3", len(page.Users), page.Total)
	}
}
