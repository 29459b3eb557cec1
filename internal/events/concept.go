// Package events owns gatherings attached to a published post: a host set, a
// location and an RSVP list.
package events

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"tandem/api/internal/concept"
	"tandem/api/internal/store"
)

type Event struct {
	ID       string
	Hosts    []string
	PostRef  string
	Location string
	RSVPs    []string
}

type Concept struct {
	events store.Collection
}

func New(events store.Collection) *Concept {
	return &Concept{events: events}
}

// Create opens an event for a post. The host set is copied verbatim from the
// post's approvers at creation time and never re-synced afterwards.
func (c *Concept) Create(ctx context.Context, hosts []string, postRef, location string) (Event, error) {
	if len(hosts) == 0 {
		return Event{}, concept.Validation("an event needs at least one host")
	}
	if strings.TrimSpace(location) == "" {
		return Event{}, concept.Validation("location is required")
	}
	doc := store.Doc{
		"hosts":    hosts,
		"postRef":  postRef,
		"location": location,
		"rsvps":    []string{},
	}
	id, err := c.events.CreateOne(ctx, doc)
	if err != nil {
		return Event{}, fmt.Errorf("create event: %w", err)
	}
	created, err := c.events.ReadOne(ctx, store.ByID(id))
	if err != nil {
		return Event{}, fmt.Errorf("read event: %w", err)
	}
	return fromDoc(created), nil
}

// RSVP records an attendee. Repeat RSVPs are accepted and leave the list
// unchanged; the append is atomic so concurrent RSVPs cannot drop each other.
func (c *Concept) RSVP(ctx context.Context, id, user string) (Event, error) {
	doc, err := c.events.PartialUpdateOne(ctx, store.ByID(id), store.AddToSet("rsvps", user))
	if errors.Is(err, store.ErrNoDoc) {
		return Event{}, concept.NotFound("event_missing", "event %s does not exist", id)
	}
	if err != nil {
		return Event{}, fmt.Errorf("rsvp: %w", err)
	}
	return fromDoc(doc), nil
}

func (c *Concept) ChangeLocation(ctx context.Context, id, location string) (Event, error) {
	if strings.TrimSpace(location) == "" {
		return Event{}, concept.Validation("location is required")
	}
	doc, err := c.events.PartialUpdateOne(ctx, store.ByID(id), store.Set("location", location))
	if errors.Is(err, store.ErrNoDoc) {
		return Event{}, concept.NotFound("event_missing", "event %s does not exist", id)
	}
	if err != nil {
		return Event{}, fmt.Errorf("change location: %w", err)
	}
	return fromDoc(doc), nil
}

// AssertHost fails when the event is absent or the user is not a host.
func (c *Concept) AssertHost(ctx context.Context, id, user string) error {
	event, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	if !slices.Contains(event.Hosts, user) {
		return concept.NotFound("not_a_host", "user %s is not a host of this event", user).WithUsers(user)
	}
	return nil
}

func (c *Concept) Get(ctx context.Context, id string) (Event, error) {
	doc, err := c.events.ReadOne(ctx, store.ByID(id))
	if errors.Is(err, store.ErrNoDoc) {
		return Event{}, concept.NotFound("event_missing", "event %s does not exist", id)
	}
	if err != nil {
		return Event{}, fmt.Errorf("read event: %w", err)
	}
	return fromDoc(doc), nil
}

func (c *Concept) All(ctx context.Context) ([]Event, error) {
	return c.list(ctx, nil)
}

func (c *Concept) ByHost(ctx context.Context, user string) ([]Event, error) {
	return c.list(ctx, store.Where(store.Contains("hosts", user)))
}

func (c *Concept) ByPost(ctx context.Context, postRef string) ([]Event, error) {
	return c.list(ctx, store.Where(store.Eq("postRef", postRef)))
}

func (c *Concept) Delete(ctx context.Context, id string) error {
	if err := c.events.DeleteOne(ctx, store.ByID(id)); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (c *Concept) list(ctx context.Context, filter store.Filter) ([]Event, error) {
	docs, err := c.events.ReadMany(ctx, filter, store.ReadOptions{SortNewestFirst: true})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]Event, 0, len(docs))
	for _, doc := range docs {
		events = append(events, fromDoc(doc))
	}
	return events, nil
}

func fromDoc(doc store.Doc) Event {
	return Event{
		ID:       store.ID(doc),
		Hosts:    store.AsStrings(doc, "hosts"),
		PostRef:  store.AsString(doc, "postRef"),
		Location: store.AsString(doc, "location"),
		RSVPs:    store.AsStrings(doc, "rsvps"),
	}
}
