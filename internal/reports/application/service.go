package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	reports "powerplant-cloud/internal/reports/domain"
)

// Submitting a field report credits the author with contribution points.
const reportPoints = 50

// PointAwarder credits contribution points to a user account.
type PointAwarder interface {
	Award(ctx context.Context, userID string, points int) error
}

// Clock provides time for the report service.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

// Now returns current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Service implements field report submission and listing.
type Service struct {
	repo    reports.Repository
	storage reports.Storage
	points  PointAwarder
	clock   Clock
	maxSize int64
}

// NewService constructs a report service.
func NewService(repo reports.Repository, storage reports.Storage, points PointAwarder, maxUploadMB int, clock Clock) (*Service, error) {
	if repo == nil {
		return nil, errors.New("reports service: nil repository")
	}
	if storage == nil {
		return nil, errors.New("reports service: nil storage")
	}
	if points == nil {
		return nil, errors.New("reports service: nil point awarder")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 5
	}
	return &Service{
		repo:    repo,
		storage: storage,
		points:  points,
		clock:   clock,
		maxSize: int64(maxUploadMB) << 20,
	}, nil
}

// MaxUploadBytes returns the configured media size limit.
func (s *Service) MaxUploadBytes() int64 { return s.maxSize }

// CreateInput is the report submission payload.
type CreateInput struct {
	UserID      string
	Title       string
	Description string
	ReportDate  time.Time
	MediaName   string
	MediaType   string
	Media       []byte
}

// Create stores the media file, persists the report and credits the author's
// points. Point crediting failures do not roll back the stored report.
func (s *Service) Create(ctx context.Context, in CreateInput) (*reports.FieldReport, error) {
	if in.UserID == "" || strings.TrimSpace(in.Title) == "" {
		return nil, reports.ErrMissingField
	}
	if int64(len(in.Media)) > s.maxSize {
		return nil, reports.ErrMediaTooLarge
	}

	reportDate := in.ReportDate
	if reportDate.IsZero() {
		reportDate = s.clock.Now()
	}

	report := &reports.FieldReport{
		ID:          newID(),
		UserID:      in.UserID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		ReportDate:  reportDate.UTC(),
		CreatedAt:   s.clock.Now(),
	}

	if len(in.Media) > 0 {
		key := fmt.Sprintf("%s/%s-%s", in.UserID, report.ID, sanitizeName(in.MediaName))
		url, err := s.storage.Upload(ctx, key, in.Media, in.MediaType)
		if err != nil {
			return nil, err
		}
		report.MediaURL = url
	}

	if err := s.repo.Create(ctx, report); err != nil {
		return nil, err
	}
	if err := s.points.Award(ctx, in.UserID, reportPoints); err != nil {
		return report, err
	}
	return report, nil
}

// Get loads one report.
func (s *Service) Get(ctx context.Context, id string) (*reports.FieldReport, error) {
	if id == "" {
		return nil, reports.ErrMissingField
	}
	return s.repo.Get(ctx, id)
}

// ListByUser returns a user's reports newest first; an empty user id lists
// all reports.
func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]*reports.FieldReport, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "upload"
	}
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	return name
}

func newID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "report-" + hex.EncodeToString(buf)
}
