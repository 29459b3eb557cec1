// Package saving owns named collections of saved post references, one set of
// labels per owner.
package saving

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tandem/api/internal/concept"
	"tandem/api/internal/store"
)

type SavedCollection struct {
	ID    string
	Owner string
	Label string
	Items []string
}

type Concept struct {
	saves store.Collection
}

func New(saves store.Collection) *Concept {
	return &Concept{saves: saves}
}

// Create starts an empty collection. Labels are unique per owner; a unique
// index on (owner, label) backs the check up under concurrency.
func (c *Concept) Create(ctx context.Context, owner, label string) (SavedCollection, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return SavedCollection{}, concept.Validation("label is required")
	}
	if _, err := c.saves.ReadOne(ctx, store.Where(store.Eq("owner", owner), store.Eq("label", label))); err == nil {
		return SavedCollection{}, concept.NotAllowed("label_taken", "collection %q already exists", label)
	} else if !errors.Is(err, store.ErrNoDoc) {
		return SavedCollection{}, fmt.Errorf("check label: %w", err)
	}

	doc := store.Doc{
		"owner": owner,
		"label": label,
		"items": []string{},
	}
	id, err := c.saves.CreateOne(ctx, doc)
	if errors.Is(err, store.ErrConflict) {
		return SavedCollection{}, concept.NotAllowed("label_taken", "collection %q already exists", label)
	}
	if err != nil {
		return SavedCollection{}, fmt.Errorf("create collection: %w", err)
	}
	return SavedCollection{ID: id, Owner: owner, Label: label, Items: []string{}}, nil
}

// Save adds a post reference to a collection. Re-saving is a no-op.
func (c *Concept) Save(ctx context.Context, owner, label, item string) (SavedCollection, error) {
	doc, err := c.saves.PartialUpdateOne(ctx,
		store.Where(store.Eq("owner", owner), store.Eq("label", label)),
		store.AddToSet("items", item),
	)
	if errors.Is(err, store.ErrNoDoc) {
		return SavedCollection{}, concept.NotFound("collection_missing", "collection %q does not exist", label)
	}
	if err != nil {
		return SavedCollection{}, fmt.Errorf("save item: %w", err)
	}
	return fromDoc(doc), nil
}

// Unsave removes a post reference from a collection.
func (c *Concept) Unsave(ctx context.Context, owner, label, item string) (SavedCollection, error) {
	doc, err := c.saves.PartialUpdateOne(ctx,
		store.Where(store.Eq("owner", owner), store.Eq("label", label)),
		store.Pull("items", item),
	)
	if errors.Is(err, store.ErrNoDoc) {
		return SavedCollection{}, concept.NotFound("collection_missing", "collection %q does not exist", label)
	}
	if err != nil {
		return SavedCollection{}, fmt.Errorf("unsave item: %w", err)
	}
	return fromDoc(doc), nil
}

func (c *Concept) Get(ctx context.Context, owner, label string) (SavedCollection, error) {
	doc, err := c.saves.ReadOne(ctx, store.Where(store.Eq("owner", owner), store.Eq("label", label)))
	if errors.Is(err, store.ErrNoDoc) {
		return SavedCollection{}, concept.NotFound("collection_missing", "collection %q does not exist", label)
	}
	if err != nil {
		return SavedCollection{}, fmt.Errorf("read collection: %w", err)
	}
	return fromDoc(doc), nil
}

func (c *Concept) ByOwner(ctx context.Context, owner string) ([]SavedCollection, error) {
	docs, err := c.saves.ReadMany(ctx, store.Where(store.Eq("owner", owner)), store.ReadOptions{SortNewestFirst: true})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	out := make([]SavedCollection, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDoc(doc))
	}
	return out, nil
}

func (c *Concept) Delete(ctx context.Context, owner, label string) error {
	err := c.saves.DeleteOne(ctx, store.Where(store.Eq("owner", owner), store.Eq("label", label)))
	if errors.Is(err, store.ErrNoDoc) {
		return concept.NotFound("collection_missing", "collection %q does not exist", label)
	}
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

func fromDoc(doc store.Doc) SavedCollection {
	return SavedCollection{
		ID:    store.ID(doc),
		Owner: store.AsString(doc, "owner"),
		Label: store.AsString(doc, "label"),
		Items: store.AsStrings(doc, "items"),
	}
}
