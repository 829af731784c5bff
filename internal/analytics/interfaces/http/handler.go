package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	analyticsapp "powerplant-cloud/internal/analytics/application"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

// Handler serves system-wide analytics endpoints.
type Handler struct {
	service *analyticsapp.Service
}

// NewHandler constructs a Handler.
func NewHandler(service *analyticsapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("analytics handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP routes analytics requests under /api/v1/analytics.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/analytics/system-status":
		h.handleSystemStatus(w, r)
	case "/api/v1/analytics/total-load":
		h.handleTotalLoad(w, r)
	case "/api/v1/analytics/machines-average":
		h.handleMachinesAverage(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.CurrentSystemStatus(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, status)
}

func (h *Handler) handleTotalLoad(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("date")
	if value == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(dateLayout, value)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	view, err := h.service.TotalLoad(r.Context(), date.UTC())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, view)
}

func (h *Handler) handleMachinesAverage(w http.ResponseWriter, r *http.Request) {
	var from, to *time.Time
	if value := r.URL.Query().Get("from"); value != "" {
		parsed, err := time.Parse(timeLayout, value)
		if err != nil {
			http.Error(w, "from must be RFC3339", http.StatusBadRequest)
			return
		}
		utc := parsed.UTC()
		from = &utc
	}
	if value := r.URL.Query().Get("to"); value != "" {
		parsed, err := time.Parse(timeLayout, value)
		if err != nil {
			http.Error(w, "to must be RFC3339", http.StatusBadRequest)
			return
		}
		utc := parsed.UTC()
		to = &utc
	}
	view, err := h.service.AllMachinesAverage(r.Context(), from, to)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, view)
}

func respondJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
