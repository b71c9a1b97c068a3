package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rsproule/attngate/internal/store"
)

// PrioritizationHandler manages per-conversation admission policy.
type PrioritizationHandler struct {
	configs      store.ConfigStore
	defaultPrice float64
	token        string
}

func NewPrioritizationHandler(configs store.ConfigStore, defaultPrice float64, token string) *PrioritizationHandler {
	return &PrioritizationHandler{configs: configs, defaultPrice: defaultPrice, token: token}
}

// RegisterRoutes registers the prioritization routes on the given mux.
func (h *PrioritizationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/conversations/{id}/prioritization", requireAuth(h.token, h.handleGet))
	mux.HandleFunc("PUT /v1/conversations/{id}/prioritization", requireAuth(h.token, h.handlePut))
	mux.HandleFunc("DELETE /v1/conversations/{id}/prioritization", requireAuth(h.token, h.handleDelete))
}

type prioritizationResponse struct {
	ConversationID     string  `json:"conversation_id"`
	MinimumNotifyPrice float64 `json:"minimum_notify_price"`
	CustomValuePrompt  string  `json:"custom_value_prompt,omitempty"`
	IsEnabled          bool    `json:"is_enabled"`
	IsDefault          bool    `json:"is_default"`
}

// handleGet returns the stored policy, or the system default with
// is_default=true when no row exists.
func (h *PrioritizationHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	cfg, err := h.configs.GetPrioritization(r.Context(), conversationID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if cfg == nil {
		writeJSON(w, http.StatusOK, prioritizationResponse{
			ConversationID:     conversationID,
			MinimumNotifyPrice: h.defaultPrice,
			IsEnabled:          true,
			IsDefault:          true,
		})
		return
	}

	writeJSON(w, http.StatusOK, prioritizationResponse{
		ConversationID:     cfg.ConversationID,
		MinimumNotifyPrice: cfg.MinimumNotifyPrice,
		CustomValuePrompt:  cfg.CustomValuePrompt,
		IsEnabled:          cfg.IsEnabled,
	})
}

func (h *PrioritizationHandler) handlePut(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	var req struct {
		MinimumNotifyPrice float64 `json:"minimum_notify_price"`
		CustomValuePrompt  string  `json:"custom_value_prompt,omitempty"`
		IsEnabled          *bool   `json:"is_enabled,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	// Negative prices are legal: always-allow for trusted senders.
	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}

	cfg := &store.PrioritizationConfig{
		ConversationID:     conversationID,
		MinimumNotifyPrice: req.MinimumNotifyPrice,
		CustomValuePrompt:  req.CustomValuePrompt,
		IsEnabled:          enabled,
		UpdatedAt:          time.Now().UTC(),
	}

	if err := h.configs.PutPrioritization(r.Context(), cfg); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, prioritizationResponse{
		ConversationID:     cfg.ConversationID,
		MinimumNotifyPrice: cfg.MinimumNotifyPrice,
		CustomValuePrompt:  cfg.CustomValuePrompt,
		IsEnabled:          cfg.IsEnabled,
	})
}

func (h *PrioritizationHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	if err := h.configs.DeletePrioritization(r.Context(), conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no prioritization config for conversation"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
