package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"powerplant-cloud/internal/observability/metrics"
	readingsapp "powerplant-cloud/internal/readings/application"
	readings "powerplant-cloud/internal/readings/domain"
	registry "powerplant-cloud/internal/registry/domain"
)

const timeLayout = time.RFC3339

// Handler serves load reading endpoints.
type Handler struct {
	ingest *readingsapp.IngestService
	query  *readingsapp.QueryService
}

// NewHandler constructs a Handler.
func NewHandler(ingest *readingsapp.IngestService, query *readingsapp.QueryService) (*Handler, error) {
	if ingest == nil {
		return nil, errors.New("readings handler: nil ingest service")
	}
	if query == nil {
		return nil, errors.New("readings handler: nil query service")
	}
	return &Handler{ingest: ingest, query: query}, nil
}

// ServeHTTP routes reading requests under /api/v1/readings.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/readings")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case path == "" && r.Method == http.MethodPut:
		h.handleUpsert(w, r)
	case path == "bulk" && r.Method == http.MethodPost:
		h.handleBulk(w, r)
	case len(parts) == 2 && parts[0] == "machine" && r.Method == http.MethodGet:
		h.handleListByMachine(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "machine" && parts[2] == "average" && r.Method == http.MethodGet:
		h.handleAverage(w, r, parts[1])
	case len(parts) == 2 && parts[0] == "plant-type" && r.Method == http.MethodGet:
		h.handleByPlantType(w, r, parts[1])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type readingPayload struct {
	MachineID string   `json:"machineId"`
	Timestamp string   `json:"timestamp"`
	Load      float64  `json:"load"`
	Status    string   `json:"status"`
	DMSiang   *float64 `json:"dmSiang"`
	DMMalam   *float64 `json:"dmMalam"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req readingPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	ts, err := parseTimestamp(req.Timestamp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	began := time.Now()
	reading, err := h.ingest.Create(r.Context(), readingsapp.CreateInput{
		MachineID: req.MachineID,
		Timestamp: ts,
		Load:      req.Load,
		Status:    req.Status,
	})
	if err != nil {
		metrics.ObserveIngest(metrics.ResultError, time.Since(began))
		metrics.IncIngestError(ingestReason(err))
		respondError(w, err)
		return
	}
	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(began))
	respondJSON(w, http.StatusCreated, reading)
}

func (h *Handler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req readingPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	ts, err := parseTimestamp(req.Timestamp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	began := time.Now()
	reading, err := h.ingest.UpsertWithDemand(r.Context(), readingsapp.UpsertInput{
		MachineID: req.MachineID,
		Timestamp: ts,
		Load:      req.Load,
		Status:    req.Status,
		DMSiang:   req.DMSiang,
		DMMalam:   req.DMMalam,
	})
	if err != nil {
		metrics.ObserveIngest(metrics.ResultError, time.Since(began))
		metrics.IncIngestError(ingestReason(err))
		respondError(w, err)
		return
	}
	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(began))
	respondJSON(w, http.StatusOK, reading)
}

func (h *Handler) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MachineID string `json:"machineId"`
		Readings  []struct {
			Timestamp string  `json:"timestamp"`
			Load      float64 `json:"load"`
			Status    string  `json:"status"`
		} `json:"readings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	items := make([]readingsapp.BulkItem, 0, len(req.Readings))
	for _, item := range req.Readings {
		ts, err := parseTimestamp(item.Timestamp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		items = append(items, readingsapp.BulkItem{
			Timestamp: ts,
			Load:      item.Load,
			Status:    item.Status,
		})
	}
	began := time.Now()
	result, err := h.ingest.BulkCreate(r.Context(), req.MachineID, items)
	if err != nil {
		metrics.ObserveIngest(metrics.ResultError, time.Since(began))
		metrics.IncIngestError(ingestReason(err))
		respondError(w, err)
		return
	}
	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(began))
	respondJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleListByMachine(w http.ResponseWriter, r *http.Request, machineID string) {
	from, to, err := parseOptionalRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	view, err := h.query.ListByMachine(r.Context(), machineID, from, to, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAverage(w http.ResponseWriter, r *http.Request, machineID string) {
	from, to, err := parseOptionalRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	view, err := h.query.Average(r.Context(), machineID, from, to)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleByPlantType(w http.ResponseWriter, r *http.Request, plantType string) {
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	view, err := h.query.ByPlantType(r.Context(), plantType, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func ingestReason(err error) string {
	switch {
	case errors.Is(err, readings.ErrDuplicateReading):
		return "duplicate"
	case errors.Is(err, registry.ErrMachineNotFound):
		return "machine_not_found"
	case errors.Is(err, readings.ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, readings.ErrMissingMachineID):
		return "missing_machine_id"
	case errors.Is(err, readings.ErrEmptyBatch):
		return "empty_batch"
	default:
		return "internal"
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, readings.ErrDuplicateReading):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, readings.ErrReadingNotFound),
		errors.Is(err, registry.ErrMachineNotFound),
		errors.Is(err, registry.ErrPlantNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, readings.ErrInvalidTimestamp),
		errors.Is(err, readings.ErrMissingMachineID),
		errors.Is(err, readings.ErrEmptyBatch),
		errors.Is(err, registry.ErrInvalidPlantType),
		errors.Is(err, registry.ErrMissingField):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New("timestamp must be RFC3339")
	}
	return parsed.UTC(), nil
}

func parseOptionalRange(r *http.Request) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if value := r.URL.Query().Get("from"); value != "" {
		parsed, err := time.Parse(timeLayout, value)
		if err != nil {
			return nil, nil, errors.New("from must be RFC3339")
		}
		utc := parsed.UTC()
		from = &utc
	}
	if value := r.URL.Query().Get("to"); value != "" {
		parsed, err := time.Parse(timeLayout, value)
		if err != nil {
			return nil, nil, errors.New("to must be RFC3339")
		}
		utc := parsed.UTC()
		to = &utc
	}
	if from != nil && to != nil && !to.After(*from) {
		return nil, nil, errors.New("to must be after from")
	}
	return from, to, nil
}

func parseLimit(r *http.Request) (int, error) {
	value := r.URL.Query().Get("limit")
	if value == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return limit, nil
}
