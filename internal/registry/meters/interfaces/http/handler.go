package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"hivegrid/internal/auth"
	"hivegrid/internal/registry"
	meterapp "hivegrid/internal/registry/meters/application"
	meters "hivegrid/internal/registry/meters/domain"
)

// Handler provides meter registry HTTP endpoints.
type Handler struct {
	service *meterapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *meterapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("meters handler: nil service")
	}
	return &Handler{service: service}, nil
}

type meterBatchRequest struct {
	Keys         []string `json:"keys"`
	Hives        []string `json:"hives"`
	Users        []string `json:"users"`
	Ratings      []uint64 `json:"ratings"`
	Types        []int    `json:"types"`
	Descriptions []string `json:"descriptions"`
}

type meterResponse struct {
	Key         string `json:"key"`
	Hive        string `json:"hive"`
	User        string `json:"user"`
	Rating      uint64 `json:"rating"`
	Type        int    `json:"type"`
	Description string `json:"description"`
}

// ServeHTTP handles /api/v1/meters and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/meters":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleBatch(w, r, h.service.RegisterBatch)
		case http.MethodPut:
			h.handleBatch(w, r, h.service.UpdateBatch)
		case http.MethodDelete:
			h.handleRemove(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case r.URL.Path == "/api/v1/meters/hive":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleAssignHive(w, r)
	case r.URL.Path == "/api/v1/meters/user":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSetUser(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/meters/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGet(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, keys, hives, users []string, ratings []uint64, types []int, descriptions []string) error) {
	var req meterBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := apply(r.Context(), req.Keys, req.Hives, req.Users, req.Ratings, req.Types, req.Descriptions); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keys []string `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.service.RemoveBatch(r.Context(), req.Keys); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAssignHive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keys []string `json:"keys"`
		Hive string   `json:"hive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	var err error
	if req.Hive == "" || req.Hive == registry.ZeroAddress.String() {
		err = h.service.UnassignFromHive(r.Context(), req.Keys)
	} else {
		err = h.service.AssignToHive(r.Context(), req.Keys, req.Hive)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keys    []string `json:"keys"`
		Wallets []string `json:"wallets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	var err error
	if len(req.Wallets) == 0 {
		err = h.service.ClearEndUser(r.Context(), req.Keys)
	} else {
		err = h.service.SetEndUser(r.Context(), req.Keys, req.Wallets)
	}
	if err != nil {
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
	out := make([]meterResponse, 0, len(list))
	for _, m := range list {
		out = append(out, toResponse(m))
	}
	writeJSON(w, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/v1/meters/")
	m, err := h.service.Get(r.Context(), key)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, toResponse(*m))
}

func toResponse(m meters.Meter) meterResponse {
	return meterResponse{
		Key:         m.Key.String(),
		Hive:        m.Hive.String(),
		User:        m.User.String(),
		Rating:      m.Rating,
		Type:        int(m.Type),
		Description: m.Description,
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		w.WriteHeader(http.StatusUnauthorized)
	case errors.Is(err, auth.ErrForbidden):
		w.WriteHeader(http.StatusForbidden)
	case errors.Is(err, meters.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, meters.ErrAlreadyRegistered):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, meters.ErrNotRegistered):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
