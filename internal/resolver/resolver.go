// Package resolver expands a notification target into the set of
// recipient conversation ids it addresses.
package resolver

import (
	"context"
	"fmt"

	"github.com/rsproule/attngate/internal/store"
)

// SegmentMembership answers which conversations belong to a segment.
// Membership is computed elsewhere; an unknown segment id yields an
// empty set, not an error.
type SegmentMembership interface {
	Members(ctx context.Context, segmentID string) ([]string, error)
}

// Resolver maps targets to recipient conversation ids using the
// recipient directory and a segment membership collaborator.
type Resolver struct {
	recipients store.RecipientStore
	segments   SegmentMembership
}

func New(recipients store.RecipientStore, segments SegmentMembership) *Resolver {
	return &Resolver{recipients: recipients, segments: segments}
}

// Resolve returns a deduplicated, order-preserving list of conversation
// ids. user_id and phone_number targets return store.ErrNotFound when
// the identity is unknown; global and segment targets never do.
func (r *Resolver) Resolve(ctx context.Context, target store.Target) ([]string, error) {
	switch target.Kind {
	case store.TargetUser:
		rec, err := r.recipients.ByUserID(ctx, target.UserID)
		if err != nil {
			return nil, fmt.Errorf("resolve user %q: %w", target.UserID, err)
		}
		return []string{rec.ConversationID}, nil

	case store.TargetPhone:
		rec, err := r.recipients.ByPhone(ctx, target.PhoneNumber)
		if err != nil {
			return nil, fmt.Errorf("resolve phone %q: %w", target.PhoneNumber, err)
		}
		return []string{rec.ConversationID}, nil

	case store.TargetGlobal:
		recs, err := r.recipients.AllOptedIn(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve global: %w", err)
		}
		ids := make([]string, 0, len(recs))
		for _, rec := range recs {
			ids = append(ids, rec.ConversationID)
		}
		return dedupe(ids), nil

	case store.TargetSegment:
		ids, err := r.segments.Members(ctx, target.SegmentID)
		if err != nil {
			return nil, fmt.Errorf("resolve segment %q: %w", target.SegmentID, err)
		}
		return dedupe(ids), nil

	default:
		return nil, fmt.Errorf("unrecognized target kind %q", target.Kind)
	}
}

// dedupe drops repeated ids while keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
