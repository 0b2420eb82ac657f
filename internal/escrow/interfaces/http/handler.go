package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"hivegrid/internal/auth"
	escrowapp "hivegrid/internal/escrow/application"
	escrow "hivegrid/internal/escrow/domain"
	meters "hivegrid/internal/registry/meters/domain"
	"hivegrid/internal/token"
)

// Handler provides escrow vault HTTP endpoints.
type Handler struct {
	vault *escrowapp.Vault
}

// NewHandler constructs a handler.
func NewHandler(vault *escrowapp.Vault) (*Handler, error) {
	if vault == nil {
		return nil, errors.New("escrow handler: nil vault")
	}
	return &Handler{vault: vault}, nil
}

// ServeHTTP handles /api/v1/escrow and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/escrow/deposits":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleDeposit(w, r)
	case r.URL.Path == "/api/v1/escrow/deposits/cancel":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleCancel(w, r)
	case r.URL.Path == "/api/v1/escrow/withdrawals":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleWithdraw(w, r)
	case r.URL.Path == "/api/v1/escrow/balances":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleListBalances(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/escrow/balances/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleBalance(w, r)
	case r.URL.Path == "/api/v1/escrow/pools":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleListPools(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/escrow/pools/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handlePool(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Meter string `json:"meter"`
		Hive  string `json:"hive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	var err error
	if req.Meter == "" {
		// Without a meter the deposit funds the hive owner pool.
		err = h.vault.DepositHiveOwner(r.Context(), req.Hive)
	} else {
		err = h.vault.Deposit(r.Context(), req.Meter, req.Hive)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.vault.CancelDeposit(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Meter  string `json:"meter"`
		Wallet string `json:"wallet"`
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.vault.Withdraw(r.Context(), req.Meter, req.Wallet, req.Amount); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	meter := strings.TrimPrefix(r.URL.Path, "/api/v1/escrow/balances/")
	balance, err := h.vault.BalanceOf(r.Context(), meter)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, map[string]any{"meter": meter, "balance": balance})
}

func (h *Handler) handlePool(w http.ResponseWriter, r *http.Request) {
	hive := strings.TrimPrefix(r.URL.Path, "/api/v1/escrow/pools/")
	balance, err := h.vault.HiveBalanceOf(r.Context(), hive)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, map[string]any{"hive": hive, "balance": balance})
}

func (h *Handler) handleListBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.vault.ListBalances(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	type row struct {
		Meter   string `json:"meter"`
		Balance uint64 `json:"balance"`
	}
	out := make([]row, 0, len(balances))
	for _, b := range balances {
		out = append(out, row{Meter: b.Meter, Balance: b.Balance})
	}
	writeJSON(w, out)
}

func (h *Handler) handleListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.vault.ListHiveBalances(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	type row struct {
		Hive    string `json:"hive"`
		Balance uint64 `json:"balance"`
	}
	out := make([]row, 0, len(pools))
	for _, p := range pools {
		out = append(out, row{Hive: p.Hive, Balance: p.Balance})
	}
	writeJSON(w, out)
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
	case errors.Is(err, escrow.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, escrow.ErrHiveMismatch):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, meters.ErrNotRegistered):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, escrow.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
