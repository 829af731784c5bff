package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"powerplant-cloud/internal/auth"
	"powerplant-cloud/internal/observability/metrics"
	reportsapp "powerplant-cloud/internal/reports/application"
	reports "powerplant-cloud/internal/reports/domain"
)

const dateLayout = "2006-01-02"

// Handler serves field report endpoints.
type Handler struct {
	service *reportsapp.Service
}

// NewHandler constructs a Handler.
func NewHandler(service *reportsapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("reports handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP routes report requests under /api/v1/reports.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/reports"), "/")

	switch {
	case path == "" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case path == "" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case path != "" && r.Method == http.MethodGet:
		h.handleGet(w, r, path)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// handleCreate accepts a multipart form: title, description, date and an
// optional file part named media. The author is the authenticated user.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := h.service.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	input := reportsapp.CreateInput{
		UserID:      userID,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}
	if value := r.FormValue("date"); value != "" {
		parsed, err := time.Parse(dateLayout, value)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		input.ReportDate = parsed.UTC()
	}

	file, header, err := r.FormFile("media")
	if err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "read media failed", http.StatusBadRequest)
			return
		}
		input.Media = data
		input.MediaName = header.Filename
		input.MediaType = header.Header.Get("Content-Type")
	} else if !errors.Is(err, http.ErrMissingFile) {
		http.Error(w, "invalid media part", http.StatusBadRequest)
		return
	}

	report, err := h.service.Create(r.Context(), input)
	if err != nil && report == nil {
		metrics.IncReportUpload(metrics.ResultError)
		respondError(w, err)
		return
	}
	metrics.IncReportUpload(metrics.ResultSuccess)
	respondJSON(w, http.StatusCreated, report)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	list, err := h.service.ListByUser(r.Context(), r.URL.Query().Get("user_id"), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	report, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reports.ErrReportNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, reports.ErrMissingField):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, reports.ErrMediaTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
