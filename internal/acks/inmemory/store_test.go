package inmemory

import (
	"context"
	"testing"

	"github.com/ecotrace/ecotrace/internal/domain"
)

func TestStore_RecordReplacesAction(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	first := domain.Acknowledgement{UserID: "alice", SuggestionID: "s1", Action: domain.AckActionAccepted}
	if err := store.Record(ctx, first); err != nil {
		t.Fatalf("Record: %v", err)
	}
	second := domain.Acknowledgement{UserID: "alice", SuggestionID: "s1", Action: domain.AckActionDismissed}
	if err := store.Record(ctx, second); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := store.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d acks, want 1", len(got))
	}
	if got["s1"].Action != domain.AckActionDismissed {
		t.Errorf("action = %q, want dismissed", got["s1"].Action)
	}
	if got["s1"].RecordedAt.IsZero() {
		t.Error("RecordedAt should be stamped")
	}
}

func TestStore_ListScopedToUser(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_ = store.Record(ctx, domain.Acknowledgement{UserID: "alice", SuggestionID: "s1", Action: domain.AckActionAccepted})
	_ = store.Record(ctx, domain.Acknowledgement{UserID: "bob", SuggestionID: "s2", Action: domain.AckActionAccepted})

	got, _ := store.List(ctx, "bob")
	if len(got) != 1 {
		t.Fatalf("got %d acks for bob, want 1", len(got))
	}
	if _, ok := got["s2"]; !ok {
		t.Error("bob's ack missing")
	}
}

func TestStore_RecordValidation(t *testing.T) {
	store := NewStore()
	if err := store.Record(context.Background(), domain.Acknowledgement{UserID: "alice"}); err == nil {
		t.Error("missing suggestion id should fail")
	}
}
