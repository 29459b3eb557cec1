package events

import (
	"context"
	"errors"
	"testing"

	"tandem/api/internal/concept"
	"tandem/api/internal/store"
)

func newConcept() *Concept {
	return New(store.NewMemoryStore().Collection("events"))
}

func kindOf(t *testing.T, err error) concept.Kind {
	t.Helper()
	var cerr *concept.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error %v is not a concept error", err)
	}
	return cerr.Kind
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	c := newConcept()

	if _, err := c.Create(ctx, nil, "post-1", "the park"); kindOf(t, err) != concept.KindValidation {
		t.Fatalf("Create(no hosts) error = %v, want Validation", err)
	}
	if _, err := c.Create(ctx, []string{"u1"}, "post-1", "  "); kindOf(t, err) != concept.KindValidation {
		t.Fatalf("Create(blank location) error = %v, want Validation", err)
	}

	event, err := c.Create(ctx, []string{"u1", "u2"}, "post-1", "the park")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if event.PostRef != "post-1" || event.Location != "the park" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if len(event.RSVPs) != 0 {
		t.Fatalf("rsvps = %v, want empty", event.RSVPs)
	}
}

func TestRSVPIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := newConcept()
	event, _ := c.Create(ctx, []string{"u1"}, "post-1", "the park")

	if _, err := c.RSVP(ctx, event.ID, "guest"); err != nil {
		t.Fatalf("RSVP() error = %v", err)
	}
	after, err := c.RSVP(ctx, event.ID, "guest")
	if err != nil {
		t.Fatalf("RSVP() repeat error = %v", err)
	}
	if len(after.RSVPs) != 1 {
		t.Fatalf("rsvps = %v, want one entry", after.RSVPs)
	}

	if _, err := c.RSVP(ctx, "nope", "guest"); kindOf(t, err) != concept.KindNotFound {
		t.Fatalf("RSVP(absent event) error = %v, want NotFound", err)
	}
}

func TestChangeLocation(t *testing.T) {
	ctx := context.Background()
	c := newConcept()
	event, _ := c.Create(ctx, []string{"u1"}, "post-1", "the park")

	after, err := c.ChangeLocation(ctx, event.ID, "the beach")
	if err != nil {
		t.Fatalf("ChangeLocation() error = %v", err)
	}
	if after.Location != "the beach" {
		t.Fatalf("location = %q, want the beach", after.Location)
	}
	if _, err := c.ChangeLocation(ctx, event.ID, ""); kindOf(t, err) != concept.KindValidation {
		t.Fatalf("ChangeLocation(blank) error = %v, want Validation", err)
	}
}

func TestAssertHost(t *testing.T) {
	ctx := context.Background()
	c := newConcept()
	event, _ := c.Create(ctx, []string{"u1"}, "post-1", "the park")

	if err := c.AssertHost(ctx, event.ID, "u1"); err != nil {
		t.Fatalf("AssertHost(host) error = %v", err)
	}
	if err := c.AssertHost(ctx, event.ID, "guest"); kindOf(t, err) != concept.KindNotFound {
		t.Fatalf("AssertHost(guest) error = %v, want NotFound", err)
	}
}

func TestListByHostAndPost(t *testing.T) {
	ctx := context.Background()
	c := newConcept()
	mine, _ := c.Create(ctx, []string{"u1"}, "post-1", "a")
	_, _ = c.Create(ctx, []string{"u2"}, "post-2", "b")

	byHost, err := c.ByHost(ctx, "u1")
	if err != nil {
		t.Fatalf("ByHost() error = %v", err)
	}
	if len(byHost) != 1 || byHost[0].ID != mine.ID {
		t.Fatalf("ByHost(u1) = %v, want only their event", byHost)
	}

	byPost, err := c.ByPost(ctx, "post-2")
	if err != nil {
		t.Fatalf("ByPost() error = %v", err)
	}
	if len(byPost) != 1 || byPost[0].PostRef != "post-2" {
		t.Fatalf("ByPost(post-2) = %v", byPost)
	}
}
