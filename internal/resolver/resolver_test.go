package resolver

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rsproule/attngate/internal/store"
	"github.com/rsproule/attngate/internal/store/memory"
)

func seededRecipients() *memory.RecipientStore {
	recipients := memory.NewRecipientStore()
	recipients.Add(store.Recipient{ConversationID: "conv-alice", UserID: "alice", PhoneNumber: "+15550100", Channel: "noop", OptedIn: true})
	recipients.Add(store.Recipient{ConversationID: "conv-bob", UserID: "bob", PhoneNumber: "+15550101", Channel: "noop", OptedIn: true})
	recipients.Add(store.Recipient{ConversationID: "conv-carol", UserID: "carol", Channel: "noop", OptedIn: false})
	recipients.AddSegmentMember("vips", "conv-bob")
	recipients.AddSegmentMember("vips", "conv-alice")
	recipients.AddSegmentMember("vips", "conv-bob") // duplicate membership rows happen
	return recipients
}

func newTestResolver() *Resolver {
	recipients := seededRecipients()
	return New(recipients, NewStoreSegments(recipients))
}

func TestResolveUserID(t *testing.T) {
	r := newTestResolver()

	got, err := r.Resolve(context.Background(), store.Target{Kind: store.TargetUser, UserID: "alice"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"conv-alice"}) {
		t.Errorf("Resolve() = %v, want [conv-alice]", got)
	}
}

func TestResolveUnknownUserIsNotFound(t *testing.T) {
	r := newTestResolver()

	_, err := r.Resolve(context.Background(), store.Target{Kind: store.TargetUser, UserID: "mallory"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestResolvePhone(t *testing.T) {
	r := newTestResolver()

	got, err := r.Resolve(context.Background(), store.Target{Kind: store.TargetPhone, PhoneNumber: "+15550101"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"conv-bob"}) {
		t.Errorf("Resolve() = %v, want [conv-bob]", got)
	}
}

func TestResolveUnknownPhoneIsNotFound(t *testing.T) {
	r := newTestResolver()

	_, err := r.Resolve(context.Background(), store.Target{Kind: store.TargetPhone, PhoneNumber: "+15559999"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestResolveGlobalOnlyOptedIn(t *testing.T) {
	r := newTestResolver()

	got, err := r.Resolve(context.Background(), store.Target{Kind: store.TargetGlobal})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{"conv-alice", "conv-bob"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v (carol is opted out)", got, want)
	}
}

func TestResolveSegmentDedupesPreservingOrder(t *testing.T) {
	r := newTestResolver()

	got, err := r.Resolve(context.Background(), store.Target{Kind: store.TargetSegment, SegmentID: "vips"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{"conv-bob", "conv-alice"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v (first-seen order, duplicates dropped)", got, want)
	}
}

func TestResolveEmptySegmentIsValid(t *testing.T) {
	r := newTestResolver()

	got, err := r.Resolve(context.Background(), store.Target{Kind: store.TargetSegment, SegmentID: "nobody"})
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil (empty segment is not an error)", err)
	}
	if len(got) != 0 {
		t.Errorf("Resolve() = %v, want empty", got)
	}
}

func TestResolveUnknownKindRejected(t *testing.T) {
	r := newTestResolver()

	_, err := r.Resolve(context.Background(), store.Target{Kind: "broadcast"})
	if err == nil {
		t.Error("Resolve() error = nil, want rejection of unknown kind")
	}
}
