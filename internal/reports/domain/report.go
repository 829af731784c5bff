package reports

import (
	"context"
	"errors"
	"time"
)

// FieldReport is an operator-submitted condition report, optionally with an
// uploaded photo or document.
type FieldReport struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	MediaURL    string    `json:"mediaUrl"`
	ReportDate  time.Time `json:"reportDate"`
	CreatedAt   time.Time `json:"createdAt"`
}

var (
	ErrReportNotFound = errors.New("reports: report not found")
	ErrMissingField   = errors.New("reports: missing required field")
	ErrMediaTooLarge  = errors.New("reports: media file too large")
)

// Repository persists field reports.
type Repository interface {
	Create(ctx context.Context, report *FieldReport) error
	Get(ctx context.Context, id string) (*FieldReport, error)
	// ListByUser returns a user's reports newest first; an empty user id
	// lists all reports.
	ListByUser(ctx context.Context, userID string, limit int) ([]*FieldReport, error)
}

// Storage persists uploaded media and returns a URL clients can fetch.
type Storage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
