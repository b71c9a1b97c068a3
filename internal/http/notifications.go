package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rsproule/attngate/internal/bus"
	"github.com/rsproule/attngate/internal/delivery"
	"github.com/rsproule/attngate/internal/store"
)

const maxPayloadBytes = 64 * 1024

// NotificationsHandler handles ingestion, status and listing endpoints.
type NotificationsHandler struct {
	queue      store.QueueStore
	deliveries store.DeliveryStore
	reporter   *delivery.Reporter
	dedupe     *bus.DedupeCache
	token      string
}

func NewNotificationsHandler(queue store.QueueStore, deliveries store.DeliveryStore, reporter *delivery.Reporter, dedupe *bus.DedupeCache, token string) *NotificationsHandler {
	return &NotificationsHandler{queue: queue, deliveries: deliveries, reporter: reporter, dedupe: dedupe, token: token}
}

// RegisterRoutes registers the notification routes on the given mux.
func (h *NotificationsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/notifications", requireAuth(h.token, h.handleIngest))
	mux.HandleFunc("GET /v1/notifications/{id}", requireAuth(h.token, h.handleStatus))
	mux.HandleFunc("GET /v1/notifications", requireAuth(h.token, h.handleList))
	mux.HandleFunc("GET /v1/queue/stats", requireAuth(h.token, h.handleStats))
	mux.HandleFunc("GET /v1/deliveries", requireAuth(h.token, h.handleDeliveries))
}

type ingestRequest struct {
	Target  store.Target    `json:"target"`
	Source  string          `json:"source"`
	Payload json.RawMessage `json:"payload"`
	Bribe   *store.Bribe    `json:"bribe,omitempty"`
}

// handleIngest validates and enqueues a notification request. Malformed
// targets are rejected synchronously and never enqueued. A repeated
// Idempotency-Key within the dedupe window is acknowledged without a
// second enqueue.
func (h *NotificationsHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	if err := req.Target.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Source == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source is required"})
		return
	}
	if len(req.Payload) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payload is required"})
		return
	}
	if req.Bribe != nil && req.Bribe.Amount < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bribe amount must not be negative"})
		return
	}

	if key := r.Header.Get("Idempotency-Key"); key != "" && h.dedupe.Seen(req.Source+":"+key) {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "duplicate"})
		return
	}

	queued := &store.QueuedRequest{
		ID:        store.GenNewID(),
		Target:    req.Target,
		Source:    req.Source,
		Bribe:     req.Bribe,
		Payload:   req.Payload,
		Status:    store.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.queue.Enqueue(r.Context(), queued); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     queued.ID.String(),
		"status": string(queued.Status),
	})
}

func (h *NotificationsHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request id"})
		return
	}

	report, err := h.reporter.Report(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "request not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *NotificationsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []store.RequestStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status := store.RequestStatus(s)
		switch status {
		case store.StatusPending, store.StatusProcessing, store.StatusCompleted, store.StatusFailed:
			statuses = append(statuses, status)
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status " + s})
			return
		}
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	reqs, err := h.queue.List(r.Context(), statuses, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": reqs})
}

// handleDeliveries lists the audit trail for one source, newest first.
// Senders use it to see what of theirs actually reached recipients.
func (h *NotificationsHandler) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source is required"})
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	recs, err := h.deliveries.ListBySource(r.Context(), source, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deliveries": recs})
}

func (h *NotificationsHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.queue.CountByStatus(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"counts": counts})
}
