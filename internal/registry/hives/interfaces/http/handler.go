package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"hivegrid/internal/auth"
	hiveapp "hivegrid/internal/registry/hives/application"
	hives "hivegrid/internal/registry/hives/domain"
)

// Handler provides hive registry HTTP endpoints.
type Handler struct {
	service *hiveapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *hiveapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("hives handler: nil service")
	}
	return &Handler{service: service}, nil
}

type hiveResponse struct {
	Key   string `json:"key"`
	Owner string `json:"owner"`
}

// ServeHTTP handles /api/v1/hives and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/hives":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleAdd(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/hives/"):
		key := strings.TrimPrefix(r.URL.Path, "/api/v1/hives/")
		switch r.Method {
		case http.MethodGet:
			h.handleInfo(w, r, key)
		case http.MethodDelete:
			h.handleDrop(w, r, key)
		case http.MethodPut:
			h.handleChangeOwner(w, r, key)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req hiveResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.service.Add(r.Context(), req.Key, req.Owner); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleDrop(w http.ResponseWriter, r *http.Request, key string) {
	if err := h.service.Drop(r.Context(), key); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChangeOwner(w http.ResponseWriter, r *http.Request, key string) {
	var req struct {
		Owner string `json:"owner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.service.ChangeOwner(r.Context(), key, req.Owner); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	keys := make([]string, 0, len(list))
	for _, key := range list {
		keys = append(keys, key.String())
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string][]string{"hives": keys})
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request, key string) {
	info, err := h.service.Info(r.Context(), key)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(hiveResponse{Key: info.Key.String(), Owner: info.Owner.String()})
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		w.WriteHeader(http.StatusUnauthorized)
	case errors.Is(err, auth.ErrForbidden):
		w.WriteHeader(http.StatusForbidden)
	case errors.Is(err, hives.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, hives.ErrAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, hives.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
