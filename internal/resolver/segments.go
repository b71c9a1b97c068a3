package resolver

import (
	"context"
	"fmt"

	"github.com/rsproule/attngate/internal/store"
)

// StoreSegments is the default SegmentMembership backed by the
// recipient directory's segment_members table.
type StoreSegments struct {
	recipients store.RecipientStore
}

func NewStoreSegments(recipients store.RecipientStore) *StoreSegments {
	return &StoreSegments{recipients: recipients}
}

func (s *StoreSegments) Members(ctx context.Context, segmentID string) ([]string, error) {
	recs, err := s.recipients.SegmentMembers(ctx, segmentID)
	if err != nil {
		return nil, fmt.Errorf("segment members %q: %w", segmentID, err)
	}
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ConversationID)
	}
	return ids, nil
}
