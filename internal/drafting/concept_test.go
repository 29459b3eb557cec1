package drafting

import (
	"context"
	"errors"
	"testing"

	"tandem/api/internal/concept"
	"tandem/api/internal/store"
)

func newConcept() *Concept {
	return New(store.NewMemoryStore().Collection("drafts"))
}

func kindOf(t *testing.T, err error) concept.Kind {
	t.Helper()
	var cerr *concept.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error %v is not a concept error", err)
	}
	return cerr.Kind
}

func TestCreateStartsWithAuthorAsSoleMember(t *testing.T) {
	ctx := context.Background()
	c := newConcept()

	draft, err := c.Create(ctx, "u1", "hello")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(draft.Members) != 1 || draft.Members[0] != "u1" {
		t.Fatalf("members = %v, want [u1]", draft.Members)
	}
	if len(draft.ContentSet) != 1 || draft.ContentSet[0] != "hello" {
		t.Fatalf("contentSet = %v, want [hello]", draft.ContentSet)
	}
	if len(draft.SelectedSet) != 0 {
		t.Fatalf("selectedSet = %v, want empty", draft.SelectedSet)
	}
}

func TestCreateWithEmptyContent(t *testing.T) {
	ctx := context.Background()
	c := newConcept()

	draft, err := c.Create(ctx, "u1", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(draft.ContentSet) != 0 {
		t.Fatalf("contentSet = %v, want empty", draft.ContentSet)
	}
}

func TestAddMemberIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := newConcept()
	draft, _ := c.Create(ctx, "u1", "")

	if _, err := c.AddMember(ctx, draft.ID, "u2"); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	again, err := c.AddMember(ctx, draft.ID, "u2")
	if err != nil {
		t.Fatalf("AddMember() repeat error = %v", err)
	}
	if len(again.Members) != 2 {
		t.Fatalf("members = %v, want 2 entries", again.Members)
	}
}

func TestAddContentRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	c := newConcept()
	draft, _ := c.Create(ctx, "u1", "hello")

	_, err := c.AddContent(ctx, draft.ID, "hello")
	if kindOf(t, err) != concept.KindNotAllowed {
		t.Fatalf("duplicate AddContent() error = %v, want NotAllowed", err)
	}
}

func TestSelectedSetIsSubsetOfContentSet(t *testing.T) {
	ctx := context.Background()
	c := newConcept()
	draft, _ := c.Create(ctx, "u1", "hello")

	if _, err := c.Select(ctx, draft.ID, "missing"); kindOf(t, err) != concept.KindNotFound {
		t.Fatalf("Select(absent) error = %v, want NotFound", err)
	}

	selected, err := c.Select(ctx, draft.ID, "hello")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(selected.SelectedSet) != 1 || selected.SelectedSet[0] != "hello" {
		t.Fatalf("selectedSet = %v, want [hello]", selected.SelectedSet)
	}

	// Selecting again leaves the set unchanged.
	selected, err = c.Select(ctx, draft.ID, "hello")
	if err != nil {
		t.Fatalf("Select() repeat error = %v", err)
	}
	if len(selected.SelectedSet) != 1 {
		t.Fatalf("selectedSet after repeat = %v, want one entry", selected.SelectedSet)
	}
}

func TestDeselect(t *testing.T) {
	ctx := context.Background()
	c := newConcept()
	draft, _ := c.Create(ctx, "u1", "hello")
	_, _ = c.Select(ctx, draft.ID, "hello")

	after, err := c.Deselect(ctx, draft.ID, "hello")
	if err != nil {
		t.Fatalf("Deselect() error = %v", err)
	}
	if len(after.SelectedSet) != 0 {
		t.Fatalf("selectedSet = %v, want empty", after.SelectedSet)
	}
	if len(after.ContentSet) != 1 {
		t.Fatalf("contentSet = %v, want [hello] still present", after.ContentSet)
	}

	if _, err := c.Deselect(ctx, draft.ID, "hello"); kindOf(t, err) != concept.KindNotFound {
		t.Fatalf("Deselect(unselected) error = %v, want NotFound", err)
	}
}

func TestAssertMember(t *testing.T) {
	ctx := context.Background()
	c := newConcept()
	draft, _ := c.Create(ctx, "u1", "")

	if err := c.AssertMember(ctx, draft.ID, "u1"); err != nil {
		t.Fatalf("AssertMember(member) error = %v", err)
	}
	if err := c.AssertMember(ctx, draft.ID, "u2"); kindOf(t, err) != concept.KindNotFound {
		t.Fatalf("AssertMember(non-member) error = %v, want NotFound", err)
	}
	if err := c.AssertMember(ctx, "nope", "u1"); kindOf(t, err) != concept.KindNotFound {
		t.Fatalf("AssertMember(absent draft) error = %v, want NotFound", err)
	}
}

func TestByMember(t *testing.T) {
	ctx := context.Background()
	c := newConcept()
	mine, _ := c.Create(ctx, "u1", "")
	_, _ = c.Create(ctx, "u2", "")
	shared, _ := c.Create(ctx, "u2", "")
	_, _ = c.AddMember(ctx, shared.ID, "u1")

	drafts, err := c.ByMember(ctx, "u1")
	if err != nil {
		t.Fatalf("ByMember() error = %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("ByMember() returned %d drafts, want 2", len(drafts))
	}
	ids := map[string]bool{drafts[0].ID: true, drafts[1].ID: true}
	if !ids[mine.ID] || !ids[shared.ID] {
		t.Fatalf("ByMember() returned wrong drafts: %v", ids)
	}
}

// Full collaborative lifecycle: draft, invite, contribute, curate.
func TestDraftLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newConcept()

	draft, err := c.Create(ctx, "alice", "intro")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := c.AddMember(ctx, draft.ID, "bob"); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if _, err := c.AddContent(ctx, draft.ID, "body"); err != nil {
		t.Fatalf("AddContent() error = %v", err)
	}
	if _, err := c.Select(ctx, draft.ID, "intro"); err != nil {
		t.Fatalf("Select(intro) error = %v", err)
	}
	if _, err := c.Select(ctx, draft.ID, "body"); err != nil {
		t.Fatalf("Select(body) error = %v", err)
	}
	if _, err := c.Deselect(ctx, draft.ID, "intro"); err != nil {
		t.Fatalf("Deselect(intro) error = %v", err)
	}

	content, err := c.Content(ctx, draft.ID)
	if err != nil {
		t.Fatalf("Content() error = %v", err)
	}
	if len(content) != 1 || content[0] != "body" {
		t.Fatalf("Content() = %v, want [body]", content)
	}

	members, err := c.Members(ctx, draft.ID)
	if err != nil {
		t.Fatalf("Members() error = %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("Members() = %v, want alice and bob", members)
	}

	if err := c.Delete(ctx, draft.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := c.Content(ctx, draft.ID); kindOf(t, err) != concept.KindNotFound {
		t.Fatalf("Content() after delete error = %v, want NotFound", err)
	}
}
