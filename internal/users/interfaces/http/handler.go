package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"powerplant-cloud/internal/auth"
	usersapp "powerplant-cloud/internal/users/application"
	users "powerplant-cloud/internal/users/domain"
)

// Handler serves account endpoints.
type Handler struct {
	service *usersapp.Service
}

// NewHandler constructs a Handler.
func NewHandler(service *usersapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("users handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP routes account requests under /api/v1/users.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/users"), "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "register" && r.Method == http.MethodPost:
		h.handleRegister(w, r)
	case path == "login" && r.Method == http.MethodPost:
		h.handleLogin(w, r)
	case path == "rankings" && r.Method == http.MethodGet:
		h.handleRankings(w, r)
	case path == "" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case len(parts) == 1 && parts[0] != "" && r.Method == http.MethodGet:
		h.handleGet(w, r, parts[0])
	case len(parts) == 1 && parts[0] != "" && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		h.handleUpdateProfile(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "role" && r.Method == http.MethodPut:
		h.handleUpdateRole(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "password" && r.Method == http.MethodPut:
		h.handleChangePassword(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	user, err := h.service.Register(r.Context(), usersapp.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := users.ListQuery{}
	if value := r.URL.Query().Get("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		query.Limit = limit
	}
	if value := r.URL.Query().Get("offset"); value != "" {
		offset, err := strconv.Atoi(value)
		if err != nil || offset < 0 {
			http.Error(w, "offset must be a non-negative integer", http.StatusBadRequest)
			return
		}
		query.Offset = offset
	}
	page, err := h.service.List(r.Context(), query)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) handleRankings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	rankings, err := h.service.Rankings(r.Context(), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rankings)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	user, err := h.service.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request, id string) {
	if !canEditAccount(r, id) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var req struct {
		Name *string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), id, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request, id string) {
	if !canEditAccount(r, id) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.service.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// canEditAccount allows an account to modify itself and admins to modify
// anyone.
func canEditAccount(r *http.Request, id string) bool {
	if auth.UserIDFromContext(r.Context()) == id {
		return true
	}
	return auth.RoleFromContext(r.Context()) == auth.RoleAdmin
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, users.ErrBadCredentials):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, users.ErrUserNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, users.ErrEmailTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, users.ErrMissingField), errors.Is(err, users.ErrInvalidRole):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
