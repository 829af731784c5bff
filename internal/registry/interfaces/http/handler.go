package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"powerplant-cloud/internal/audit"
	"powerplant-cloud/internal/auth"
	registryapp "powerplant-cloud/internal/registry/application"
	registry "powerplant-cloud/internal/registry/domain"
)

// Handler serves plant and machine registry endpoints.
type Handler struct {
	service     *registryapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *registryapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("registry handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes registry requests under /api/v1/plants and
// /api/v1/machines.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/v1/plants"):
		h.servePlants(w, r, strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/plants"), "/"))
	case strings.HasPrefix(r.URL.Path, "/api/v1/machines"):
		h.serveMachines(w, r, strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/machines"), "/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) servePlants(w http.ResponseWriter, r *http.Request, rest string) {
	switch {
	case rest == "" && r.Method == http.MethodPost:
		h.handleCreatePlant(w, r)
	case rest == "" && r.Method == http.MethodGet:
		h.handleListPlants(w, r)
	case rest != "" && r.Method == http.MethodGet:
		h.handleGetPlant(w, r, rest)
	case rest != "" && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		h.handleUpdatePlant(w, r, rest)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) serveMachines(w http.ResponseWriter, r *http.Request, rest string) {
	switch {
	case rest == "" && r.Method == http.MethodPost:
		h.handleCreateMachine(w, r)
	case rest == "" && r.Method == http.MethodGet:
		h.handleListMachines(w, r)
	case rest != "" && r.Method == http.MethodGet:
		h.handleGetMachine(w, r, rest)
	case rest != "" && r.Method == http.MethodDelete:
		h.handleDeleteMachine(w, r, rest)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreatePlant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	plant, err := h.service.CreatePlant(r.Context(), registryapp.CreatePlantInput{Name: req.Name, Type: req.Type})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, plant)
	h.logAudit(r, "plant.create", "plant", plant.ID, map[string]any{"name": plant.Name, "type": plant.Type})
}

func (h *Handler) handleListPlants(w http.ResponseWriter, r *http.Request) {
	plants, err := h.service.ListPlants(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, plants)
}

func (h *Handler) handleGetPlant(w http.ResponseWriter, r *http.Request, id string) {
	plant, err := h.service.GetPlant(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, plant)
}

func (h *Handler) handleUpdatePlant(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Name *string `json:"name"`
		Type *string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	plant, err := h.service.UpdatePlant(r.Context(), id, registryapp.UpdatePlantInput{Name: req.Name, Type: req.Type})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, plant)
	h.logAudit(r, "plant.update", "plant", plant.ID, map[string]any{"name": plant.Name, "type": plant.Type})
}

func (h *Handler) handleCreateMachine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		PlantID    string `json:"plantId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	machine, err := h.service.CreateMachine(r.Context(), registryapp.CreateMachineInput{
		Identifier: req.Identifier,
		PlantID:    req.PlantID,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, machine)
	h.logAudit(r, "machine.create", "machine", machine.ID, map[string]any{"identifier": machine.Identifier, "plantId": machine.PlantID})
}

func (h *Handler) handleListMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := h.service.ListMachines(r.Context(), r.URL.Query().Get("plant_id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, machines)
}

func (h *Handler) handleGetMachine(w http.ResponseWriter, r *http.Request, id string) {
	machine, err := h.service.GetMachine(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, machine)
}

func (h *Handler) handleDeleteMachine(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.DeleteMachine(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, "machine.delete", "machine", id, nil)
}

func (h *Handler) logAudit(r *http.Request, action, resourceType, resourceID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	var payload []byte
	if meta != nil {
		payload, _ = json.Marshal(meta)
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.UserIDFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrPlantNotFound),
		errors.Is(err, registry.ErrMachineNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, registry.ErrPlantNameTaken),
		errors.Is(err, registry.ErrMachineHasReadings):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, registry.ErrInvalidPlantType),
		errors.Is(err, registry.ErrMissingField):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
