package friending

import (
	"context"
	"errors"
	"testing"

	"tandem/api/internal/concept"
	"tandem/api/internal/store"
)

func newConcept() *Concept {
	s := store.NewMemoryStore()
	return New(s.Collection("friend_requests"), s.Collection("friends"))
}

func kindOf(t *testing.T, err error) concept.Kind {
	t.Helper()
	var cerr *concept.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error %v is not a concept error", err)
	}
	return cerr.Kind
}

func TestSendRequestRejectsSelf(t *testing.T) {
	c := newConcept()
	if _, err := c.SendRequest(context.Background(), "u1", "u1"); kindOf(t, err) != concept.KindNotAllowed {
		t.Fatalf("SendRequest(self) error = %v, want NotAllowed", err)
	}
}

func TestSendRequestRejectsDuplicateEitherDirection(t *testing.T) {
	ctx := context.Background()
	c := newConcept()

	if _, err := c.SendRequest(ctx, "u1", "u2"); err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	if _, err := c.SendRequest(ctx, "u1", "u2"); kindOf(t, err) != concept.KindNotAllowed {
		t.Fatalf("SendRequest(repeat) error = %v, want NotAllowed", err)
	}
	if _, err := c.SendRequest(ctx, "u2", "u1"); kindOf(t, err) != concept.KindNotAllowed {
		t.Fatalf("SendRequest(reverse) error = %v, want NotAllowed", err)
	}
}

func TestAcceptCreatesSymmetricFriendship(t *testing.T) {
	ctx := context.Background()
	c := newConcept()

	_, _ = c.SendRequest(ctx, "u1", "u2")
	if err := c.AcceptRequest(ctx, "u1", "u2"); err != nil {
		t.Fatalf("AcceptRequest() error = %v", err)
	}

	for _, pair := range [][2]string{{"u1", "u2"}, {"u2", "u1"}} {
		ok, err := c.AreFriends(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("AreFriends(%v) error = %v", pair, err)
		}
		if !ok {
			t.Fatalf("AreFriends(%v) = false, want true", pair)
		}
	}

	// The request is consumed.
	requests, err := c.Requests(ctx, "u1")
	if err != nil {
		t.Fatalf("Requests() error = %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("requests after accept = %v, want none", requests)
	}
}

func TestAcceptRequiresPendingRequest(t *testing.T) {
	c := newConcept()
	if err := c.AcceptRequest(context.Background(), "u1", "u2"); kindOf(t, err) != concept.KindNotFound {
		t.Fatalf("AcceptRequest(no request) error = %v, want NotFound", err)
	}
}

func TestRejectLeavesNoFriendship(t *testing.T) {
	ctx := context.Background()
	c := newConcept()

	_, _ = c.SendRequest(ctx, "u1", "u2")
	if err := c.RejectRequest(ctx, "u1", "u2"); err != nil {
		t.Fatalf("RejectRequest() error = %v", err)
	}
	ok, _ := c.AreFriends(ctx, "u1", "u2")
	if ok {
		t.Fatal("AreFriends() = true after reject")
	}

	// A rejected pair can try again.
	if _, err := c.SendRequest(ctx, "u1", "u2"); err != nil {
		t.Fatalf("SendRequest() after reject error = %v", err)
	}
}

func TestWithdrawRequest(t *testing.T) {
	ctx := context.Background()
	c := newConcept()

	_, _ = c.SendRequest(ctx, "u1", "u2")
	if err := c.RemoveRequest(ctx, "u1", "u2"); err != nil {
		t.Fatalf("RemoveRequest() error = %v", err)
	}
	if err := c.RemoveRequest(ctx, "u1", "u2"); kindOf(t, err) != concept.KindNotFound {
		t.Fatalf("RemoveRequest(again) error = %v, want NotFound", err)
	}
}

func TestSendRequestRejectsExistingFriends(t *testing.T) {
	ctx := context.Background()
	c := newConcept()

	_, _ = c.SendRequest(ctx, "u1", "u2")
	_ = c.AcceptRequest(ctx, "u1", "u2")

	if _, err := c.SendRequest(ctx, "u2", "u1"); kindOf(t, err) != concept.KindNotAllowed {
		t.Fatalf("SendRequest(already friends) error = %v, want NotAllowed", err)
	}
}

func TestRemoveFriendEitherSide(t *testing.T) {
	ctx := context.Background()
	c := newConcept()

	_, _ = c.SendRequest(ctx, "u1", "u2")
	_ = c.AcceptRequest(ctx, "u1", "u2")

	if err := c.RemoveFriend(ctx, "u2", "u1"); err != nil {
		t.Fatalf("RemoveFriend() error = %v", err)
	}
	ok, _ := c.AreFriends(ctx, "u1", "u2")
	if ok {
		t.Fatal("AreFriends() = true after removal")
	}
	if err := c.RemoveFriend(ctx, "u1", "u2"); kindOf(t, err) != concept.KindNotFound {
		t.Fatalf("RemoveFriend(not friends) error = %v, want NotFound", err)
	}
}

func TestFriendsListsBothSidesOfPair(t *testing.T) {
	ctx := context.Background()
	c := newConcept()

	// u2 < u1 alphabetically is false; use ids that exercise both canonical slots.
	_, _ = c.SendRequest(ctx, "bob", "alice")
	_ = c.AcceptRequest(ctx, "bob", "alice")
	_, _ = c.SendRequest(ctx, "bob", "carol")
	_ = c.AcceptRequest(ctx, "bob", "carol")

	friends, err := c.Friends(ctx, "bob")
	if err != nil {
		t.Fatalf("Friends() error = %v", err)
	}
	if len(friends) != 2 {
		t.Fatalf("Friends(bob) = %v, want alice and carol", friends)
	}
	got := map[string]bool{friends[0]: true, friends[1]: true}
	if !got["alice"] || !got["carol"] {
		t.Fatalf("Friends(bob) = %v, want alice and carol", friends)
	}
}

func TestRequestsListsSentAndReceived(t *testing.T) {
	ctx := context.Background()
	c := newConcept()

	_, _ = c.SendRequest(ctx, "u1", "u2")
	_, _ = c.SendRequest(ctx, "u3", "u1")

	requests, err := c.Requests(ctx, "u1")
	if err != nil {
		t.Fatalf("Requests() error = %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("Requests(u1) returned %d, want 2", len(requests))
	}
	for _, r := range requests {
		if r.Status != "pending" {
			t.Fatalf("request status = %q, want pending", r.Status)
		}
	}
}
