package authing

import (
	"context"
	"testing"

	"tandem/api/internal/store"
)

// countingCollection counts ReadMany calls; the batching property is that
// Resolve issues exactly one per call.
type countingCollection struct {
	store.Collection
	readMany int
}

func (c *countingCollection) ReadMany(ctx context.Context, filter store.Filter, opts store.ReadOptions) ([]store.Doc, error) {
	c.readMany++
	return c.Collection.ReadMany(ctx, filter, opts)
}

func TestResolvePreservesOrderAndDuplicates(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryStore().Collection("users")
	c := New(users)

	alice, _ := c.Create(ctx, "alice", "pw")
	bob, _ := c.Create(ctx, "bob", "pw")

	names, err := c.Resolve(ctx, []string{bob.ID, alice.ID, bob.ID})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{"bob", "alice", "bob"}
	if len(names) != len(want) {
		t.Fatalf("Resolve() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Resolve() = %v, want %v", names, want)
		}
	}
}

func TestResolveRendersMissingUsers(t *testing.T) {
	ctx := context.Background()
	c := newConcept()
	alice, _ := c.Create(ctx, "alice", "pw")

	names, err := c.Resolve(ctx, []string{"gone", alice.ID})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if names[0] != DeletedUser || names[1] != "alice" {
		t.Fatalf("Resolve() = %v, want [%s alice]", names, DeletedUser)
	}
}

func TestResolveEmptyInput(t *testing.T) {
	c := newConcept()
	names, err := c.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("Resolve(nil) = %v, want empty", names)
	}
}

func TestResolveIssuesOneLookup(t *testing.T) {
	ctx := context.Background()
	counting := &countingCollection{Collection: store.NewMemoryStore().Collection("users")}
	c := New(counting)

	a, _ := c.Create(ctx, "alice", "pw")
	b, _ := c.Create(ctx, "bob", "pw")
	counting.readMany = 0

	if _, err := c.Resolve(ctx, []string{a.ID, b.ID, a.ID, b.ID, "gone"}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if counting.readMany != 1 {
		t.Fatalf("Resolve() issued %d lookups, want exactly 1", counting.readMany)
	}
}
