package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"hivegrid/internal/auth"
	escrow "hivegrid/internal/escrow/domain"
	meters "hivegrid/internal/registry/meters/domain"
	settlementapp "hivegrid/internal/settlement/application"
	settlement "hivegrid/internal/settlement/domain"
	"hivegrid/internal/settlement/interfaces"
)

// Handler provides settlement HTTP endpoints.
type Handler struct {
	engine *settlementapp.Engine
}

// NewHandler constructs a handler.
func NewHandler(engine *settlementapp.Engine) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("settlement handler: nil engine")
	}
	return &Handler{engine: engine}, nil
}

// submitRequest keeps the parallel-array wire shape: tariff_names[i] prices
// flows[i]. The arrays must have equal length.
type submitRequest struct {
	Slot        int      `json:"slot"`
	TariffNames []string `json:"tariff_names"`
	Flows       []uint64 `json:"flows"`
}

type journalEntryResponse struct {
	Meter     string `json:"meter"`
	Hive      string `json:"hive"`
	Slot      int    `json:"slot"`
	NetAmount int64  `json:"net_amount"`
	SettledAt string `json:"settled_at"`
}

// ServeHTTP handles /api/v1/settlements and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/settlements":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSubmit(w, r)
	case "/api/v1/settlements/slots":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSlots(w, r)
	case "/api/v1/settlements/journal":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleJournal(w, r)
	case "/api/v1/settlements/roster":
		switch r.Method {
		case http.MethodGet:
			h.handleGetRoster(w, r)
		case http.MethodPost:
			h.handleAddRoster(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(req.TariffNames) != len(req.Flows) {
		http.Error(w, settlement.ErrInvalidInput.Error(), http.StatusBadRequest)
		return
	}
	flows := make([]settlementapp.Flow, 0, len(req.Flows))
	for i, name := range req.TariffNames {
		flows = append(flows, settlementapp.Flow{Tariff: name, Amount: req.Flows[i]})
	}

	entry, err := h.engine.SubmitEnergyFlows(r.Context(), settlement.Slot(req.Slot), flows)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(entry))
}

func (h *Handler) handleSlots(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"current_slot": int(h.engine.CurrentSlot()),
		"last_slot":    int(h.engine.LastSlot()),
	})
}

func (h *Handler) handleJournal(w http.ResponseWriter, r *http.Request) {
	var (
		entries []settlement.JournalEntry
		err     error
	)
	switch {
	case r.URL.Query().Get("meter") != "":
		entries, err = h.engine.History(r.Context(), r.URL.Query().Get("meter"))
	case r.URL.Query().Get("slot") != "":
		var slot int
		slot, err = strconv.Atoi(r.URL.Query().Get("slot"))
		if err != nil {
			http.Error(w, "slot must be an integer", http.StatusBadRequest)
			return
		}
		entries, err = h.engine.SlotHistory(r.Context(), settlement.Slot(slot))
	default:
		entries, err = h.engine.FullHistory(r.Context())
	}
	if err != nil {
		respondError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, toResponses(entries))
	case "csv":
		out, err := interfaces.BuildJournalCSV(entries)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="journal.csv"`)
		_, _ = w.Write(out)
	case "xlsx":
		out, err := interfaces.BuildJournalXLSX(entries)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="journal.xlsx"`)
		_, _ = w.Write(out)
	case "pdf":
		out, err := interfaces.BuildJournalPDF(entries)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="journal.pdf"`)
		_, _ = w.Write(out)
	default:
		http.Error(w, "unsupported format", http.StatusBadRequest)
	}
}

func (h *Handler) handleGetRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := h.engine.GetMeters(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	keys := make([]string, 0, len(roster))
	for _, addr := range roster {
		keys = append(keys, addr.String())
	}
	writeJSON(w, http.StatusOK, map[string][]string{"meters": keys})
}

func (h *Handler) handleAddRoster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Meters []string `json:"meters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.engine.AddMeters(r.Context(), req.Meters); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toResponse(entry settlement.JournalEntry) journalEntryResponse {
	return journalEntryResponse{
		Meter:     entry.Meter,
		Hive:      entry.Hive,
		Slot:      int(entry.Slot),
		NetAmount: entry.Net,
		SettledAt: entry.SettledAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toResponses(entries []settlement.JournalEntry) []journalEntryResponse {
	out := make([]journalEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toResponse(entry))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		w.WriteHeader(http.StatusUnauthorized)
	case errors.Is(err, auth.ErrForbidden):
		w.WriteHeader(http.StatusForbidden)
	case errors.Is(err, settlement.ErrAlreadySettled):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, settlement.ErrInvalidSlot),
		errors.Is(err, settlement.ErrInvalidInput),
		errors.Is(err, settlement.ErrAmountOverflow):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, settlement.ErrUnknownTariff),
		errors.Is(err, settlement.ErrDanglingHive),
		errors.Is(err, settlement.ErrDanglingUser),
		errors.Is(err, meters.ErrNotRegistered):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, escrow.ErrInsufficientBalance):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
