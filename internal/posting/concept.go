// Package posting owns published posts and the consensus gate in front of
// them: a post is Approved exactly when its approved set equals its approver
// set, compared as sets.
package posting

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"tandem/api/internal/concept"
	"tandem/api/internal/store"
)

type Status string

const (
	StatusNotApproved Status = "NotApproved"
	StatusApproved    Status = "Approved"
)

// Themes is the allow-list for SetTheme.
var Themes = []string{"travel", "food", "music", "sports", "art", "tech"}

type Post struct {
	ID        string
	Approvers []string
	Content   []string
	Approved  []string
	Status    Status
	Theme     string
}

type Concept struct {
	posts store.Collection
}

func New(posts store.Collection) *Concept {
	return &Concept{posts: posts}
}

// Create copies the supplied approver set verbatim. Only the draft conversion
// calls this.
func (c *Concept) Create(ctx context.Context, approvers, content []string) (Post, error) {
	if len(approvers) == 0 {
		return Post{}, concept.Validation("a post needs at least one approver")
	}
	doc := store.Doc{
		"approvers": approvers,
		"content":   content,
		"approved":  []string{},
		"status":    string(StatusNotApproved),
		"theme":     "",
	}
	id, err := c.posts.CreateOne(ctx, doc)
	if err != nil {
		return Post{}, fmt.Errorf("create post: %w", err)
	}
	created, err := c.posts.ReadOne(ctx, store.ByID(id))
	if err != nil {
		return Post{}, fmt.Errorf("read post: %w", err)
	}
	return fromDoc(created), nil
}

// Approve records a user's sign-off. The append is an atomic AddToSet, so
// concurrent approvals cannot drop each other, and the status write is
// monotonic: it only ever flips NotApproved -> Approved, computed from the
// post-update document, so a stale reader cannot regress it.
func (c *Concept) Approve(ctx context.Context, user, id string) (Post, error) {
	doc, err := c.posts.PartialUpdateOne(ctx, store.ByID(id), store.AddToSet("approved", user))
	if errors.Is(err, store.ErrNoDoc) {
		return Post{}, concept.NotFound("post_missing", "post %s does not exist", id)
	}
	if err != nil {
		return Post{}, fmt.Errorf("approve post: %w", err)
	}
	post := fromDoc(doc)
	if post.Status != StatusApproved && setEqual(post.Approved, post.Approvers) {
		doc, err = c.posts.PartialUpdateOne(ctx, store.ByID(id), store.Set("status", string(StatusApproved)))
		if err != nil {
			return Post{}, fmt.Errorf("mark approved: %w", err)
		}
		post = fromDoc(doc)
	}
	return post, nil
}

// EnsureStatus recomputes the consensus flip from the stored document. Approve
// applies the flip itself, but its status write can fail after the approval
// landed; this closes that gap so the stored status cannot stay behind the
// approved set.
func (c *Concept) EnsureStatus(ctx context.Context, id string) (Post, error) {
	post, err := c.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if post.Status == StatusApproved || !setEqual(post.Approved, post.Approvers) {
		return post, nil
	}
	doc, err := c.posts.PartialUpdateOne(ctx, store.ByID(id), store.Set("status", string(StatusApproved)))
	if err != nil {
		return Post{}, fmt.Errorf("mark approved: %w", err)
	}
	return fromDoc(doc), nil
}

// AssertApprover fails when the post is absent or the user is not an approver.
func (c *Concept) AssertApprover(ctx context.Context, id, user string) error {
	post, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	if !slices.Contains(post.Approvers, user) {
		return concept.NotFound("not_an_approver", "user %s is not an approver of this post", user).WithUsers(user)
	}
	return nil
}

// AssertCanApprove additionally rejects a repeat approval.
func (c *Concept) AssertCanApprove(ctx context.Context, id, user string) error {
	post, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	if !slices.Contains(post.Approvers, user) {
		return concept.NotFound("not_an_approver", "user %s is not an approver of this post", user).WithUsers(user)
	}
	if slices.Contains(post.Approved, user) {
		return concept.NotAllowed("already_approved", "user %s has already approved this post", user).WithUsers(user)
	}
	return nil
}

func (c *Concept) AssertThemeValid(theme string) error {
	if !slices.Contains(Themes, theme) {
		return concept.NotAllowed("invalid_theme", "theme %q is not allowed", theme)
	}
	return nil
}

func (c *Concept) SetTheme(ctx context.Context, id, theme string) (Post, error) {
	doc, err := c.posts.PartialUpdateOne(ctx, store.ByID(id), store.Set("theme", theme))
	if errors.Is(err, store.ErrNoDoc) {
		return Post{}, concept.NotFound("post_missing", "post %s does not exist", id)
	}
	if err != nil {
		return Post{}, fmt.Errorf("set theme: %w", err)
	}
	return fromDoc(doc), nil
}

func (c *Concept) Get(ctx context.Context, id string) (Post, error) {
	doc, err := c.posts.ReadOne(ctx, store.ByID(id))
	if errors.Is(err, store.ErrNoDoc) {
		return Post{}, concept.NotFound("post_missing", "post %s does not exist", id)
	}
	if err != nil {
		return Post{}, fmt.Errorf("read post: %w", err)
	}
	return fromDoc(doc), nil
}

func (c *Concept) All(ctx context.Context) ([]Post, error) {
	return c.list(ctx, nil)
}

func (c *Concept) ByAuthor(ctx context.Context, author string) ([]Post, error) {
	return c.list(ctx, store.Where(store.Contains("approvers", author)))
}

func (c *Concept) ByTheme(ctx context.Context, theme string) ([]Post, error) {
	return c.list(ctx, store.Where(store.Eq("theme", theme)))
}

func (c *Concept) ByStatus(ctx context.Context, status Status) ([]Post, error) {
	return c.list(ctx, store.Where(store.Eq("status", string(status))))
}

func (c *Concept) ByIDs(ctx context.Context, ids []string) ([]Post, error) {
	if len(ids) == 0 {
		return []Post{}, nil
	}
	return c.list(ctx, store.Where(store.In("id", ids...)))
}

func (c *Concept) Delete(ctx context.Context, id string) error {
	if err := c.posts.DeleteOne(ctx, store.ByID(id)); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

func (c *Concept) list(ctx context.Context, filter store.Filter) ([]Post, error) {
	docs, err := c.posts.ReadMany(ctx, filter, store.ReadOptions{SortNewestFirst: true})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	posts := make([]Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, fromDoc(doc))
	}
	return posts, nil
}

// setEqual compares as sets, never by length: duplicates or strays must not
// count toward consensus.
func setEqual(a, b []string) bool {
	inA := make(map[string]struct{}, len(a))
	for _, e := range a {
		inA[e] = struct{}{}
	}
	inB := make(map[string]struct{}, len(b))
	for _, e := range b {
		inB[e] = struct{}{}
	}
	if len(inA) != len(inB) {
		return false
	}
	for e := range inA {
		if _, ok := inB[e]; !ok {
			return false
		}
	}
	return true
}

func fromDoc(doc store.Doc) Post {
	return Post{
		ID:        store.ID(doc),
		Approvers: store.AsStrings(doc, "approvers"),
		Content:   store.AsStrings(doc, "content"),
		Approved:  store.AsStrings(doc, "approved"),
		Status:    Status(store.AsString(doc, "status")),
		Theme:     store.AsString(doc, "theme"),
	}
}
