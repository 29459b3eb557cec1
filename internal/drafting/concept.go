// Package drafting owns collaborative drafts: a member set, a pool of content
// fragments and the subset currently selected for publication. The selected
// set is always a subset of the content set.
package drafting

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"tandem/api/internal/concept"
	"tandem/api/internal/store"
)

type Draft struct {
	ID          string
	Members     []string
	ContentSet  []string
	SelectedSet []string
}

type Concept struct {
	drafts store.Collection
}

func New(drafts store.Collection) *Concept {
	return &Concept{drafts: drafts}
}

// Create starts a draft with the author as sole member. An initial fragment
// may be supplied; an empty one starts the draft with no content.
func (c *Concept) Create(ctx context.Context, author, content string) (Draft, error) {
	contentSet := []string{}
	if content != "" {
		contentSet = append(contentSet, content)
	}
	doc := store.Doc{
		"members":     []string{author},
		"contentSet":  contentSet,
		"selectedSet": []string{},
	}
	id, err := c.drafts.CreateOne(ctx, doc)
	if err != nil {
		return Draft{}, fmt.Errorf("create draft: %w", err)
	}
	created, err := c.drafts.ReadOne(ctx, store.ByID(id))
	if err != nil {
		return Draft{}, fmt.Errorf("read draft: %w", err)
	}
	return fromDoc(created), nil
}

// AddMember adds a user to the draft. Re-adding an existing member is not an
// error and leaves the member set unchanged.
func (c *Concept) AddMember(ctx context.Context, id, user string) (Draft, error) {
	doc, err := c.drafts.PartialUpdateOne(ctx, store.ByID(id), store.AddToSet("members", user))
	if errors.Is(err, store.ErrNoDoc) {
		return Draft{}, concept.NotFound("draft_missing", "draft %s does not exist", id)
	}
	if err != nil {
		return Draft{}, fmt.Errorf("add member: %w", err)
	}
	return fromDoc(doc), nil
}

// AddContent adds a fragment. Duplicate fragments are rejected.
func (c *Concept) AddContent(ctx context.Context, id, content string) (Draft, error) {
	draft, err := c.get(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	if slices.Contains(draft.ContentSet, content) {
		return Draft{}, concept.NotAllowed("duplicate_content", "content %q is already in the draft", content)
	}
	doc, err := c.drafts.PartialUpdateOne(ctx, store.ByID(id), store.AddToSet("contentSet", content))
	if errors.Is(err, store.ErrNoDoc) {
		return Draft{}, concept.NotFound("draft_missing", "draft %s does not exist", id)
	}
	if err != nil {
		return Draft{}, fmt.Errorf("add content: %w", err)
	}
	return fromDoc(doc), nil
}

// Select marks a fragment for publication. Selecting an already-selected
// fragment is a no-op; selecting a fragment not in the content set fails.
func (c *Concept) Select(ctx context.Context, id, content string) (Draft, error) {
	draft, err := c.get(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	if !slices.Contains(draft.ContentSet, content) {
		return Draft{}, concept.NotFound("content_missing", "content %q is not in the draft", content)
	}
	doc, err := c.drafts.PartialUpdateOne(ctx, store.ByID(id), store.AddToSet("selectedSet", content))
	if errors.Is(err, store.ErrNoDoc) {
		return Draft{}, concept.NotFound("draft_missing", "draft %s does not exist", id)
	}
	if err != nil {
		return Draft{}, fmt.Errorf("select content: %w", err)
	}
	return fromDoc(doc), nil
}

// Deselect removes a fragment from the selected set.
func (c *Concept) Deselect(ctx context.Context, id, content string) (Draft, error) {
	draft, err := c.get(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	if !slices.Contains(draft.SelectedSet, content) {
		return Draft{}, concept.NotFound("content_not_selected", "content %q is not selected", content)
	}
	doc, err := c.drafts.PartialUpdateOne(ctx, store.ByID(id), store.Pull("selectedSet", content))
	if errors.Is(err, store.ErrNoDoc) {
		return Draft{}, concept.NotFound("draft_missing", "draft %s does not exist", id)
	}
	if err != nil {
		return Draft{}, fmt.Errorf("deselect content: %w", err)
	}
	return fromDoc(doc), nil
}

// Content returns the selected fragments, in selection order. Used by the
// draft-to-post conversion.
func (c *Concept) Content(ctx context.Context, id string) ([]string, error) {
	draft, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return draft.SelectedSet, nil
}

func (c *Concept) Members(ctx context.Context, id string) ([]string, error) {
	draft, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return draft.Members, nil
}

func (c *Concept) ByMember(ctx context.Context, user string) ([]Draft, error) {
	docs, err := c.drafts.ReadMany(ctx, store.Where(store.Contains("members", user)), store.ReadOptions{SortNewestFirst: true})
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	drafts := make([]Draft, 0, len(docs))
	for _, doc := range docs {
		drafts = append(drafts, fromDoc(doc))
	}
	return drafts, nil
}

func (c *Concept) Delete(ctx context.Context, id string) error {
	if err := c.drafts.DeleteOne(ctx, store.ByID(id)); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// AssertMember fails when the draft is absent or the user is not a member.
func (c *Concept) AssertMember(ctx context.Context, id, user string) error {
	draft, err := c.get(ctx, id)
	if err != nil {
		return err
	}
	if !slices.Contains(draft.Members, user) {
		return concept.NotFound("not_a_member", "user %s is not a member of this draft", user).WithUsers(user)
	}
	return nil
}

func (c *Concept) get(ctx context.Context, id string) (Draft, error) {
	doc, err := c.drafts.ReadOne(ctx, store.ByID(id))
	if errors.Is(err, store.ErrNoDoc) {
		return Draft{}, concept.NotFound("draft_missing", "draft %s does not exist", id)
	}
	if err != nil {
		return Draft{}, fmt.Errorf("read draft: %w", err)
	}
	return fromDoc(doc), nil
}

func fromDoc(doc store.Doc) Draft {
	return Draft{
		ID:          store.ID(doc),
		Members:     store.AsStrings(doc, "members"),
		ContentSet:  store.AsStrings(doc, "contentSet"),
		SelectedSet: store.AsStrings(doc, "selectedSet"),
	}
}
