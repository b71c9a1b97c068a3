// Package memory provides in-memory store implementations. They back dry
// runs and are the test doubles for the orchestration packages.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rsproule/attngate/internal/store"
)

// NewStores creates a fully in-memory store bundle.
func NewStores() *store.Stores {
	return &store.Stores{
		Queue:       NewQueueStore(),
		Config:      NewConfigStore(),
		Evaluations: NewEvaluationStore(),
		Deliveries:  NewDeliveryStore(),
		Recipients:  NewRecipientStore(),
	}
}

// ============================================================
// Queue
// ============================================================

type QueueStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*store.QueuedRequest
}

func NewQueueStore() *QueueStore {
	return &QueueStore{requests: make(map[uuid.UUID]*store.QueuedRequest)}
}

func (s *QueueStore) Enqueue(_ context.Context, req *store.QueuedRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = store.GenNewID()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.Status = store.StatusPending
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *QueueStore) Get(_ context.Context, id uuid.UUID) (*store.QueuedRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *QueueStore) List(_ context.Context, statuses []store.RequestStatus, limit int) ([]store.QueuedRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	want := make(map[store.RequestStatus]bool)
	for _, st := range statuses {
		want[st] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.QueuedRequest
	for _, r := range s.requests {
		if len(want) > 0 && !want[r.Status] {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *QueueStore) ClaimPending(_ context.Context, limit int) ([]store.QueuedRequest, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*store.QueuedRequest
	for _, r := range s.requests {
		if r.Status == store.StatusPending {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}

	now := time.Now().UTC()
	out := make([]store.QueuedRequest, 0, len(pending))
	for _, r := range pending {
		r.Status = store.StatusProcessing
		t := now
		r.ClaimedAt = &t
		out = append(out, *r)
	}
	return out, nil
}

func (s *QueueStore) MarkCompleted(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	return s.finalize(id, store.StatusCompleted, "", processedAt)
}

func (s *QueueStore) MarkFailed(_ context.Context, id uuid.UUID, reason string, processedAt time.Time) error {
	return s.finalize(id, store.StatusFailed, reason, processedAt)
}

func (s *QueueStore) finalize(id uuid.UUID, status store.RequestStatus, reason string, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return store.ErrNotFound
	}
	if r.Status != store.StatusProcessing {
		return store.ErrNotFound
	}
	r.Status = status
	r.Error = reason
	t := processedAt.UTC()
	r.ProcessedAt = &t
	r.ClaimedAt = nil
	return nil
}

func (s *QueueStore) ReclaimStuck(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	n := 0
	for _, r := range s.requests {
		if r.Status == store.StatusProcessing && r.ClaimedAt != nil && r.ClaimedAt.Before(cutoff) {
			r.Status = store.StatusPending
			r.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

func (s *QueueStore) CountByStatus(_ context.Context) (map[store.RequestStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[store.RequestStatus]int)
	for _, r := range s.requests {
		counts[r.Status]++
	}
	return counts, nil
}

// ============================================================
// Prioritization config
// ============================================================

type ConfigStore struct {
	mu      sync.RWMutex
	configs map[string]store.PrioritizationConfig
}

func NewConfigStore() *ConfigStore {
	return &ConfigStore{configs: make(map[string]store.PrioritizationConfig)}
}

func (s *ConfigStore) GetPrioritization(_ context.Context, conversationID string) (*store.PrioritizationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[conversationID]
	if !ok {
		return nil, nil
	}
	cp := cfg
	return &cp, nil
}

func (s *ConfigStore) PutPrioritization(_ context.Context, cfg *store.PrioritizationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.UpdatedAt = time.Now().UTC()
	s.configs[cfg.ConversationID] = *cfg
	return nil
}

func (s *ConfigStore) DeletePrioritization(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[conversationID]; !ok {
		return store.ErrNotFound
	}
	delete(s.configs, conversationID)
	return nil
}

// ============================================================
// Evaluations
// ============================================================

type evalKey struct {
	request      uuid.UUID
	conversation string
}

type EvaluationStore struct {
	mu    sync.Mutex
	evals map[evalKey]store.Evaluation
}

func NewEvaluationStore() *EvaluationStore {
	return &EvaluationStore{evals: make(map[evalKey]store.Evaluation)}
}

func (s *EvaluationStore) Insert(_ context.Context, ev *store.Evaluation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := evalKey{ev.RequestID, ev.ConversationID}
	if _, exists := s.evals[key]; exists {
		return false, nil
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	s.evals[key] = *ev
	return true, nil
}

func (s *EvaluationStore) ListByRequest(_ context.Context, requestID uuid.UUID) ([]store.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Evaluation
	for key, ev := range s.evals {
		if key.request == requestID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out, nil
}

// ============================================================
// Delivery records
// ============================================================

type DeliveryStore struct {
	mu   sync.Mutex
	recs []store.DeliveryRecord
}

func NewDeliveryStore() *DeliveryStore {
	return &DeliveryStore{}
}

func (s *DeliveryStore) Insert(_ context.Context, rec *store.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.recs = append(s.recs, *rec)
	return nil
}

func (s *DeliveryStore) ListByRequest(_ context.Context, requestID uuid.UUID) ([]store.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.DeliveryRecord
	for _, rec := range s.recs {
		if rec.RequestID == requestID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *DeliveryStore) ListBySource(_ context.Context, source string, limit int) ([]store.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.DeliveryRecord
	for i := len(s.recs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.recs[i].Source == source {
			out = append(out, s.recs[i])
		}
	}
	return out, nil
}

// ============================================================
// Recipients
// ============================================================

type RecipientStore struct {
	mu         sync.RWMutex
	recipients map[string]store.Recipient // conversation id → recipient
	segments   map[string][]string        // segment id → conversation ids, insertion order
}

func NewRecipientStore() *RecipientStore {
	return &RecipientStore{
		recipients: make(map[string]store.Recipient),
		segments:   make(map[string][]string),
	}
}

// Add registers a recipient (test/seed helper; not part of store.RecipientStore).
func (s *RecipientStore) Add(r store.Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients[r.ConversationID] = r
}

// AddSegmentMember appends a conversation to a segment (test/seed helper).
func (s *RecipientStore) AddSegmentMember(segmentID, conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[segmentID] = append(s.segments[segmentID], conversationID)
}

func (s *RecipientStore) ByUserID(_ context.Context, userID string) (*store.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.recipients {
		if r.UserID == userID {
			cp := r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *RecipientStore) ByPhone(_ context.Context, phone string) (*store.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.recipients {
		if r.PhoneNumber == phone {
			cp := r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *RecipientStore) ByConversation(_ context.Context, conversationID string) (*store.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recipients[conversationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := r
	return &cp, nil
}

func (s *RecipientStore) AllOptedIn(_ context.Context) ([]store.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Recipient
	for _, r := range s.recipients {
		if r.OptedIn {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out, nil
}

func (s *RecipientStore) SegmentMembers(_ context.Context, segmentID string) ([]store.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Recipient
	for _, convID := range s.segments[segmentID] {
		if r, ok := s.recipients[convID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
