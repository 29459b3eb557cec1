package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryCreateAndReadOne(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryStore().Collection("things")

	id, err := c.CreateOne(ctx, Doc{"name": "first", "tags": []string{"a"}})
	if err != nil {
		t.Fatalf("CreateOne() error = %v", err)
	}
	if id == "" {
		t.Fatal("CreateOne() returned empty id")
	}

	doc, err := c.ReadOne(ctx, ByID(id))
	if err != nil {
		t.Fatalf("ReadOne() error = %v", err)
	}
	if AsString(doc, "name") != "first" {
		t.Fatalf("unexpected doc: %v", doc)
	}
	if ID(doc) != id {
		t.Fatalf("doc id = %q, want %q", ID(doc), id)
	}
}

func TestMemoryReadOneMissing(t *testing.T) {
	c := NewMemoryStore().Collection("things")
	if _, err := c.ReadOne(context.Background(), ByID("nope")); !errors.Is(err, ErrNoDoc) {
		t.Fatalf("ReadOne() error = %v, want ErrNoDoc", err)
	}
}

func TestMemoryFilters(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryStore().Collection("things")

	a, _ := c.CreateOne(ctx, Doc{"kind": "x", "members": []string{"u1", "u2"}})
	b, _ := c.CreateOne(ctx, Doc{"kind": "y", "members": []string{"u2"}})
	_, _ = c.CreateOne(ctx, Doc{"kind": "x", "members": []string{"u3"}})

	byKind, err := c.ReadMany(ctx, Where(Eq("kind", "x")), ReadOptions{})
	if err != nil {
		t.Fatalf("ReadMany(eq) error = %v", err)
	}
	if len(byKind) != 2 {
		t.Fatalf("eq filter matched %d docs, want 2", len(byKind))
	}

	byMember, err := c.ReadMany(ctx, Where(Contains("members", "u2")), ReadOptions{})
	if err != nil {
		t.Fatalf("ReadMany(contains) error = %v", err)
	}
	if len(byMember) != 2 {
		t.Fatalf("contains filter matched %d docs, want 2", len(byMember))
	}

	byID, err := c.ReadMany(ctx, Where(In("id", a, b)), ReadOptions{})
	if err != nil {
		t.Fatalf("ReadMany(in) error = %v", err)
	}
	if len(byID) != 2 {
		t.Fatalf("in filter matched %d docs, want 2", len(byID))
	}
}

func TestMemorySortNewestFirst(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryStore().Collection("things")
	first, _ := c.CreateOne(ctx, Doc{"n": 1})
	second, _ := c.CreateOne(ctx, Doc{"n": 2})

	docs, err := c.ReadMany(ctx, nil, ReadOptions{SortNewestFirst: true})
	if err != nil {
		t.Fatalf("ReadMany() error = %v", err)
	}
	if ID(docs[0]) != second || ID(docs[1]) != first {
		t.Fatalf("unexpected order: %s, %s", ID(docs[0]), ID(docs[1]))
	}
}

func TestMemoryPatchOps(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryStore().Collection("things")
	id, _ := c.CreateOne(ctx, Doc{"status": "open", "tags": []string{"a"}})

	doc, err := c.PartialUpdateOne(ctx, ByID(id),
		Set("status", "closed"),
		AddToSet("tags", "b"),
		AddToSet("tags", "a"),
		Push("tags", "a"),
	)
	if err != nil {
		t.Fatalf("PartialUpdateOne() error = %v", err)
	}
	if AsString(doc, "status") != "closed" {
		t.Fatalf("status = %q, want closed", AsString(doc, "status"))
	}
	tags := AsStrings(doc, "tags")
	want := []string{"a", "b", "a"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags = %v, want %v", tags, want)
		}
	}

	doc, err = c.PartialUpdateOne(ctx, ByID(id), Pull("tags", "a"))
	if err != nil {
		t.Fatalf("PartialUpdateOne(pull) error = %v", err)
	}
	tags = AsStrings(doc, "tags")
	if len(tags) != 1 || tags[0] != "b" {
		t.Fatalf("tags after pull = %v, want [b]", tags)
	}
}

func TestMemoryPatchMissingDoc(t *testing.T) {
	c := NewMemoryStore().Collection("things")
	if _, err := c.PartialUpdateOne(context.Background(), ByID("nope"), Set("a", 1)); !errors.Is(err, ErrNoDoc) {
		t.Fatalf("PartialUpdateOne() error = %v, want ErrNoDoc", err)
	}
}

func TestMemoryDeleteOne(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryStore().Collection("things")
	id, _ := c.CreateOne(ctx, Doc{"n": 1})

	if err := c.DeleteOne(ctx, ByID(id)); err != nil {
		t.Fatalf("DeleteOne() error = %v", err)
	}
	if _, err := c.ReadOne(ctx, ByID(id)); !errors.Is(err, ErrNoDoc) {
		t.Fatalf("ReadOne() after delete error = %v, want ErrNoDoc", err)
	}
	if err := c.DeleteOne(ctx, ByID(id)); !errors.Is(err, ErrNoDoc) {
		t.Fatalf("DeleteOne() again error = %v, want ErrNoDoc", err)
	}
}

// Concurrent AddToSet calls on one document must not lose elements.
func TestMemoryConcurrentAddToSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryStore().Collection("things")
	id, _ := c.CreateOne(ctx, Doc{"approved": []string{}})

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.PartialUpdateOne(ctx, ByID(id), AddToSet("approved", fmt.Sprintf("user-%d", i)))
			if err != nil {
				t.Errorf("PartialUpdateOne() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	doc, err := c.ReadOne(ctx, ByID(id))
	if err != nil {
		t.Fatalf("ReadOne() error = %v", err)
	}
	if got := len(AsStrings(doc, "approved")); got != n {
		t.Fatalf("approved has %d elements, want %d", got, n)
	}
}
