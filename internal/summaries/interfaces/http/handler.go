package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	analyticsapp "powerplant-cloud/internal/analytics/application"
	"powerplant-cloud/internal/observability/metrics"
	registry "powerplant-cloud/internal/registry/domain"
	summaries "powerplant-cloud/internal/summaries/domain"
)

const dateLayout = "2006-01-02"

// MachineLookup resolves a machine with plant context.
type MachineLookup interface {
	GetMachine(ctx context.Context, id string) (*registry.MachineWithPlant, error)
}

// Handler serves daily summary endpoints, including file exports.
type Handler struct {
	store     summaries.Repository
	machines  MachineLookup
	analytics *analyticsapp.Service
}

// NewHandler constructs a Handler.
func NewHandler(store summaries.Repository, machines MachineLookup, analytics *analyticsapp.Service) (*Handler, error) {
	if store == nil {
		return nil, errors.New("summaries handler: nil store")
	}
	if machines == nil {
		return nil, errors.New("summaries handler: nil machine lookup")
	}
	if analytics == nil {
		return nil, errors.New("summaries handler: nil analytics service")
	}
	return &Handler{store: store, machines: machines, analytics: analytics}, nil
}

// ServeHTTP routes summary requests under /api/v1/summaries.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/summaries"), "/")
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 2 && parts[0] == "machine":
		h.handleByMachine(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "machine" && parts[2] == "export.xlsx":
		h.handleMachineXLSX(w, r, parts[1])
	case path == "plant":
		h.handlePlantSummary(w, r)
	case path == "plant/export.pdf":
		h.handlePlantPDF(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type machineSummaries struct {
	Machine   *registry.MachineWithPlant `json:"machine"`
	Summaries []*summaries.DailySummary  `json:"summaries"`
}

func (h *Handler) handleByMachine(w http.ResponseWriter, r *http.Request, machineID string) {
	machine, rows, err := h.loadMachineSummaries(r, machineID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, machineSummaries{Machine: machine, Summaries: rows})
}

func (h *Handler) handleMachineXLSX(w http.ResponseWriter, r *http.Request, machineID string) {
	machine, rows, err := h.loadMachineSummaries(r, machineID)
	if err != nil {
		respondError(w, err)
		return
	}
	began := time.Now()
	payload, err := BuildMachineSummaryXLSX(machine, rows)
	if err != nil {
		metrics.ObserveExport("xlsx", metrics.ResultError, time.Since(began))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport("xlsx", metrics.ResultSuccess, time.Since(began))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="summaries-`+machine.Identifier+`.xlsx"`)
	_, _ = w.Write(payload)
}

func (h *Handler) handlePlantSummary(w http.ResponseWriter, r *http.Request) {
	plantID, date, err := parsePlantQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	groups, err := h.analytics.PlantSummary(r.Context(), plantID, date)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

func (h *Handler) handlePlantPDF(w http.ResponseWriter, r *http.Request) {
	plantID, date, err := parsePlantQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	groups, err := h.analytics.PlantSummary(r.Context(), plantID, date)
	if err != nil {
		respondError(w, err)
		return
	}
	label := dateLabel(date)
	began := time.Now()
	payload, err := BuildPlantSummaryPDF(label, groups)
	if err != nil {
		metrics.ObserveExport("pdf", metrics.ResultError, time.Since(began))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport("pdf", metrics.ResultSuccess, time.Since(began))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="plant-summary-`+label+`.pdf"`)
	_, _ = w.Write(payload)
}

func (h *Handler) loadMachineSummaries(r *http.Request, machineID string) (*registry.MachineWithPlant, []*summaries.DailySummary, error) {
	machine, err := h.machines.GetMachine(r.Context(), machineID)
	if err != nil {
		return nil, nil, err
	}
	query := summaries.RangeQuery{}
	if value := r.URL.Query().Get("from"); value != "" {
		parsed, err := time.Parse(dateLayout, value)
		if err != nil {
			return nil, nil, errBadDate
		}
		utc := parsed.UTC()
		query.From = &utc
	}
	if value := r.URL.Query().Get("to"); value != "" {
		parsed, err := time.Parse(dateLayout, value)
		if err != nil {
			return nil, nil, errBadDate
		}
		utc := parsed.UTC()
		query.To = &utc
	}
	rows, err := h.store.ListByMachine(r.Context(), machineID, query)
	if err != nil {
		return nil, nil, err
	}
	return machine, rows, nil
}

var errBadDate = errors.New("date must be YYYY-MM-DD")

func parsePlantQuery(r *http.Request) (string, time.Time, error) {
	plantID := r.URL.Query().Get("plant_id")
	var date time.Time
	if value := r.URL.Query().Get("date"); value != "" {
		parsed, err := time.Parse(dateLayout, value)
		if err != nil {
			return "", time.Time{}, errBadDate
		}
		date = parsed.UTC()
	}
	return plantID, date, nil
}

func dateLabel(date time.Time) string {
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return date.Format(dateLayout)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrMachineNotFound),
		errors.Is(err, registry.ErrPlantNotFound),
		errors.Is(err, summaries.ErrSummaryNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, errBadDate),
		errors.Is(err, summaries.ErrInvalidDay),
		errors.Is(err, summaries.ErrMissingMachineID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
