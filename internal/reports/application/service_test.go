package application

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	reports "powerplant-cloud/internal/reports/domain"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type stubRepo struct {
	created []*reports.FieldReport
}

func (s *stubRepo) Create(ctx context.Context, report *reports.FieldReport) error {
	s.created = append(s.created, report)
	return nil
}

func (s *stubRepo) Get(ctx context.Context, id string) (*reports.FieldReport, error) {
	for _, report := range s.created {
		if report.ID == id {
			return report, nil
		}
	}
	return nil, reports.ErrReportNotFound
}

func (s *stubRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*reports.FieldReport, error) {
	return s.created, nil
}

type stubStorage struct {
	keys []string
	data [][]byte
}

func (s *stubStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.keys = append(s.keys, key)
	s.data = append(s.data, data)
	return "http://media.local/" + key, nil
}

type stubAwarder struct {
	userID string
	points int
}

func (s *stubAwarder) Award(ctx context.Context, userID string, points int) error {
	s.userID = userID
	s.points += points
	return nil
}

func newReportService(t *testing.T) (*Service, *stubRepo, *stubStorage, *stubAwarder) {
	t.Helper()
	repo := &stubRepo{}
	storage := &stubStorage{}
	awarder := &stubAwarder{}
	service, err := NewService(repo, storage, awarder, 1, fixedClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service, repo, storage, awarder
}

func TestCreateStoresMediaAndAwardsPoints(t *testing.T) {
	service, repo, storage, awarder := newReportService(t)

	report, err := service.Create(context.Background(), CreateInput{
		UserID:    "user-1",
		Title:     "Turbine inspection",
		MediaName: "photo.jpg",
		MediaType: "image/jpeg",
		Media:     bytes.Repeat([]byte{1}, 128),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("created = %d, want 1", len(repo.created))
	}
	if report.MediaURL == "" || !strings.Contains(report.MediaURL, "photo.jpg") {
		t.Errorf("mediaUrl = %q", report.MediaURL)
	}
	if len(storage.keys) != 1 || !strings.HasPrefix(storage.keys[0], "user-1/") {
		t.Errorf("storage key = %v, want user-scoped", storage.keys)
	}
	if awarder.userID != "user-1" || awarder.points != reportPoints {
		t.Errorf("award = %q/%d, want user-1/%d", awarder.userID, awarder.points, reportPoints)
	}
}

func TestCreateWithoutMediaSkipsStorage(t *testing.T) {
	service, _, storage, _ := newReportService(t)

	report, err := service.Create(context.Background(), CreateInput{UserID: "user-1", Title: "Log entry"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if report.MediaURL != "" {
		t.Errorf("mediaUrl = %q, want empty", report.MediaURL)
	}
	if len(storage.keys) != 0 {
		t.Errorf("storage called %d times without media", len(storage.keys))
	}
}

func TestCreateRejectsOversizedMedia(t *testing.T) {
	service, repo, _, _ := newReportService(t)

	_, err := service.Create(context.Background(), CreateInput{
		UserID: "user-1",
		Title:  "Big upload",
		Media:  make([]byte, 2<<20),
	})
	if !errors.Is(err, reports.ErrMediaTooLarge) {
		t.Fatalf("err = %v, want ErrMediaTooLarge", err)
	}
	if len(repo.created) != 0 {
		t.Error("oversized upload must not persist a report")
	}
}

func TestCreateValidatesFields(t *testing.T) {
	service, _, _, _ := newReportService(t)

	if _, err := service.Create(context.Background(), CreateInput{Title: "No author"}); !errors.Is(err, reports.ErrMissingField) {
		t.Errorf("missing user: err = %v, want ErrMissingField", err)
	}
	if _, err := service.Create(context.Background(), CreateInput{UserID: "user-1", Title: "  "}); !errors.Is(err, reports.ErrMissingField) {
		t.Errorf("blank title: err = %v, want ErrMissingField", err)
	}
}
