package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of a queued notification request.
// Transitions only advance: pending → processing → {completed, failed}.
// Terminal states are immutable and rows are never deleted (audit trail).
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusProcessing RequestStatus = "processing"
	StatusCompleted  RequestStatus = "completed"
	StatusFailed     RequestStatus = "failed"
)

// TargetKind discriminates the target variants a notification can address.
type TargetKind string

const (
	TargetUser    TargetKind = "user_id"
	TargetPhone   TargetKind = "phone_number"
	TargetGlobal  TargetKind = "global"
	TargetSegment TargetKind = "segment"
)

// Target is the tagged-variant target descriptor carried by a request.
// Exactly one id field matches the kind; global carries none.
type Target struct {
	Kind        TargetKind `json:"type"`
	UserID      string     `json:"user_id,omitempty"`
	PhoneNumber string     `json:"phone_number,omitempty"`
	SegmentID   string     `json:"segment_id,omitempty"`
}

// Validate checks that the kind is known and carries its matching id field.
// Unrecognized kinds are rejected, never silently passed through.
func (t Target) Validate() error {
	switch t.Kind {
	case TargetUser:
		if t.UserID == "" {
			return fmt.Errorf("target kind %q requires user_id", t.Kind)
		}
	case TargetPhone:
		if t.PhoneNumber == "" {
			return fmt.Errorf("target kind %q requires phone_number", t.Kind)
		}
	case TargetSegment:
		if t.SegmentID == "" {
			return fmt.Errorf("target kind %q requires segment_id", t.Kind)
		}
	case TargetGlobal:
		// no id field
	default:
		return fmt.Errorf("unknown target kind %q", t.Kind)
	}
	return nil
}

// ID returns the variant's id field ("" for global).
func (t Target) ID() string {
	switch t.Kind {
	case TargetUser:
		return t.UserID
	case TargetPhone:
		return t.PhoneNumber
	case TargetSegment:
		return t.SegmentID
	}
	return ""
}

// Bribe is an optional monetary incentive attached to a request.
type Bribe struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency,omitempty"`
	TransactionID string  `json:"transaction_id,omitempty"`
}

// QueuedRequest is one inbound notification request and its lifecycle record.
type QueuedRequest struct {
	ID          uuid.UUID       `json:"id"`
	Target      Target          `json:"target"`
	Source      string          `json:"source"`
	Bribe       *Bribe          `json:"bribe,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	Status      RequestStatus   `json:"status"`
	Error       string          `json:"error,omitempty"`
	ClaimedAt   *time.Time      `json:"claimed_at,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// BribeAmount returns the attached bribe amount, or 0 when none.
func (r *QueuedRequest) BribeAmount() float64 {
	if r.Bribe == nil {
		return 0
	}
	return r.Bribe.Amount
}

// PrioritizationConfig is one recipient conversation's admission policy.
// Absence of a row means the system default applies.
type PrioritizationConfig struct {
	ConversationID     string    `json:"conversation_id"`
	MinimumNotifyPrice float64   `json:"minimum_notify_price"`
	CustomValuePrompt  string    `json:"custom_value_prompt,omitempty"`
	IsEnabled          bool      `json:"is_enabled"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Evaluation records one admission decision for a (request, recipient) pair.
// Append-only; at most one row per pair.
type Evaluation struct {
	RequestID      uuid.UUID `json:"request_id"`
	ConversationID string    `json:"conversation_id"`
	BaseValue      float64   `json:"base_value"`
	BribeAmount    float64   `json:"bribe_amount"`
	TotalValue     float64   `json:"total_value"`
	Passed         bool      `json:"passed"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}

// DeliveryRecord records one outbound forwarding attempt for a passed
// evaluation. Forwarded=false means admission passed but the channel failed.
type DeliveryRecord struct {
	RequestID       uuid.UUID `json:"request_id"`
	Source          string    `json:"source"`
	ConversationID  string    `json:"conversation_id"`
	Forwarded       bool      `json:"forwarded"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Recipient is one addressable conversation in the directory.
type Recipient struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
	PhoneNumber    string `json:"phone_number,omitempty"`
	Channel        string `json:"channel"`
	ChatID         string `json:"chat_id"`
	OptedIn        bool   `json:"opted_in"`
}

// GenNewID returns a time-ordered UUID for new queue rows, so FIFO claiming
// by created_at groups naturally with id order.
func GenNewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
