// Package friending owns the mutual-friendship state machine: a pending
// request from one user to another, which on acceptance becomes a symmetric
// friendship. Friendships are stored once, with the pair in canonical order.
package friending

import (
	"context"
	"errors"
	"fmt"

	"tandem/api/internal/concept"
	"tandem/api/internal/store"
)

const statusPending = "pending"

type Request struct {
	ID     string
	From   string
	To     string
	Status string
}

type Concept struct {
	requests store.Collection
	friends  store.Collection
}

func New(requests, friends store.Collection) *Concept {
	return &Concept{requests: requests, friends: friends}
}

// SendRequest opens a pending request. It fails when the users are already
// friends or a pending request exists in either direction. A unique index on
// the canonical pending pair backs this check up under concurrency.
func (c *Concept) SendRequest(ctx context.Context, from, to string) (Request, error) {
	if from == to {
		return Request{}, concept.NotAllowed("self_friend", "you cannot send a friend request to yourself")
	}
	if err := c.assertNotFriends(ctx, from, to); err != nil {
		return Request{}, err
	}
	if _, err := c.pending(ctx, from, to); err == nil {
		return Request{}, concept.NotAllowed("request_exists", "a friend request between these users already exists").WithUsers(to)
	} else if !isNotFound(err) {
		return Request{}, err
	}
	if _, err := c.pending(ctx, to, from); err == nil {
		return Request{}, concept.NotAllowed("request_exists", "a friend request between these users already exists").WithUsers(to)
	} else if !isNotFound(err) {
		return Request{}, err
	}

	u1, u2 := canonical(from, to)
	doc := store.Doc{
		"from":   from,
		"to":     to,
		"status": statusPending,
		"user1":  u1,
		"user2":  u2,
	}
	id, err := c.requests.CreateOne(ctx, doc)
	if errors.Is(err, store.ErrConflict) {
		return Request{}, concept.NotAllowed("request_exists", "a friend request between these users already exists").WithUsers(to)
	}
	if err != nil {
		return Request{}, fmt.Errorf("create friend request: %w", err)
	}
	return Request{ID: id, From: from, To: to, Status: statusPending}, nil
}

// AcceptRequest consumes the pending request from->to and records the
// friendship. Only the recipient can accept.
func (c *Concept) AcceptRequest(ctx context.Context, from, to string) error {
	req, err := c.pending(ctx, from, to)
	if err != nil {
		return err
	}
	if err := c.requests.DeleteOne(ctx, store.ByID(req.ID)); err != nil {
		return fmt.Errorf("remove friend request: %w", err)
	}
	u1, u2 := canonical(from, to)
	if _, err := c.friends.CreateOne(ctx, store.Doc{"user1": u1, "user2": u2}); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil
		}
		return fmt.Errorf("create friendship: %w", err)
	}
	return nil
}

// RejectRequest consumes the pending request without creating a friendship.
func (c *Concept) RejectRequest(ctx context.Context, from, to string) error {
	req, err := c.pending(ctx, from, to)
	if err != nil {
		return err
	}
	if err := c.requests.DeleteOne(ctx, store.ByID(req.ID)); err != nil {
		return fmt.Errorf("remove friend request: %w", err)
	}
	return nil
}

// RemoveRequest lets the sender withdraw a pending request.
func (c *Concept) RemoveRequest(ctx context.Context, from, to string) error {
	req, err := c.pending(ctx, from, to)
	if err != nil {
		return err
	}
	if err := c.requests.DeleteOne(ctx, store.ByID(req.ID)); err != nil {
		return fmt.Errorf("remove friend request: %w", err)
	}
	return nil
}

// RemoveFriend deletes the friendship between two users, whichever side asks.
func (c *Concept) RemoveFriend(ctx context.Context, user, friend string) error {
	u1, u2 := canonical(user, friend)
	err := c.friends.DeleteOne(ctx, store.Where(store.Eq("user1", u1), store.Eq("user2", u2)))
	if errors.Is(err, store.ErrNoDoc) {
		return concept.NotFound("not_friends", "users %s and %s are not friends", user, friend).WithUsers(user, friend)
	}
	if err != nil {
		return fmt.Errorf("remove friendship: %w", err)
	}
	return nil
}

// Friends returns the ids of everyone the user is friends with. Two filtered
// reads, one per side of the canonical pair.
func (c *Concept) Friends(ctx context.Context, user string) ([]string, error) {
	out := []string{}
	asFirst, err := c.friends.ReadMany(ctx, store.Where(store.Eq("user1", user)), store.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	for _, doc := range asFirst {
		out = append(out, store.AsString(doc, "user2"))
	}
	asSecond, err := c.friends.ReadMany(ctx, store.Where(store.Eq("user2", user)), store.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	for _, doc := range asSecond {
		out = append(out, store.AsString(doc, "user1"))
	}
	return out, nil
}

// AreFriends reports whether a friendship exists between the two users.
func (c *Concept) AreFriends(ctx context.Context, a, b string) (bool, error) {
	u1, u2 := canonical(a, b)
	_, err := c.friends.ReadOne(ctx, store.Where(store.Eq("user1", u1), store.Eq("user2", u2)))
	if errors.Is(err, store.ErrNoDoc) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read friendship: %w", err)
	}
	return true, nil
}

// Requests returns every pending request the user is party to, sent or
// received.
func (c *Concept) Requests(ctx context.Context, user string) ([]Request, error) {
	out := []Request{}
	sent, err := c.requests.ReadMany(ctx, store.Where(store.Eq("from", user)), store.ReadOptions{SortNewestFirst: true})
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	for _, doc := range sent {
		out = append(out, requestFromDoc(doc))
	}
	received, err := c.requests.ReadMany(ctx, store.Where(store.Eq("to", user)), store.ReadOptions{SortNewestFirst: true})
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	for _, doc := range received {
		out = append(out, requestFromDoc(doc))
	}
	return out, nil
}

func (c *Concept) assertNotFriends(ctx context.Context, a, b string) error {
	friends, err := c.AreFriends(ctx, a, b)
	if err != nil {
		return err
	}
	if friends {
		return concept.NotAllowed("already_friends", "users %s and %s are already friends", a, b).WithUsers(a, b)
	}
	return nil
}

func (c *Concept) pending(ctx context.Context, from, to string) (Request, error) {
	doc, err := c.requests.ReadOne(ctx, store.Where(
		store.Eq("from", from),
		store.Eq("to", to),
		store.Eq("status", statusPending),
	))
	if errors.Is(err, store.ErrNoDoc) {
		return Request{}, concept.NotFound("request_missing", "no pending friend request from %s to %s", from, to).WithUsers(from, to)
	}
	if err != nil {
		return Request{}, fmt.Errorf("read friend request: %w", err)
	}
	return requestFromDoc(doc), nil
}

func isNotFound(err error) bool {
	var cerr *concept.Error
	return errors.As(err, &cerr) && cerr.Kind == concept.KindNotFound
}

// canonical orders a pair so each friendship is stored exactly once.
func canonical(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

func requestFromDoc(doc store.Doc) Request {
	return Request{
		ID:     store.ID(doc),
		From:   store.AsString(doc, "from"),
		To:     store.AsString(doc, "to"),
		Status: store.AsString(doc, "status"),
	}
}
