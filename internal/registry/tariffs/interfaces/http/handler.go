package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"hivegrid/internal/auth"
	tariffapp "hivegrid/internal/registry/tariffs/application"
	tariffs "hivegrid/internal/registry/tariffs/domain"
)

// Handler provides tariff registry HTTP endpoints.
type Handler struct {
	service *tariffapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *tariffapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("tariffs handler: nil service")
	}
	return &Handler{service: service}, nil
}

type tariffBatchRequest struct {
	Names      []string `json:"names"`
	Directions []int    `json:"directions"`
	Prices     []uint64 `json:"prices"`
}

type tariffResponse struct {
	Name      string `json:"name"`
	Direction int    `json:"direction"`
	Price     uint64 `json:"price"`
}

// ServeHTTP handles /api/v1/tariffs and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/tariffs":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleBatch(w, r, h.service.AddBatch)
		case http.MethodPut:
			h.handleBatch(w, r, h.service.UpdateBatch)
		case http.MethodDelete:
			h.handleRemove(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/tariffs/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGet(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, names []string, directions []int, prices []uint64) error) {
	var req tariffBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := apply(r.Context(), req.Names, req.Directions, req.Prices); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Names []string `json:"names"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.service.RemoveBatch(r.Context(), req.Names); err != nil {
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
	out := make([]tariffResponse, 0, len(list))
	for _, t := range list {
		out = append(out, tariffResponse{Name: t.Name, Direction: int(t.Direction), Price: t.Price})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/tariffs/")
	t, err := h.service.Get(r.Context(), name)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tariffResponse{Name: t.Name, Direction: int(t.Direction), Price: t.Price})
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		w.WriteHeader(http.StatusUnauthorized)
	case errors.Is(err, auth.ErrForbidden):
		w.WriteHeader(http.StatusForbidden)
	case errors.Is(err, tariffs.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, tariffs.ErrAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, tariffs.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
