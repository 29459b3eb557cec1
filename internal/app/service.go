// Package app is the synchronization layer: it composes the concepts per
// route in a fixed order (authenticate, resolve names to ids, authorize,
// mutate, resolve ids back to names) and owns the HTTP boundary.
package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"tandem/api/internal/auth"
	"tandem/api/internal/authing"
	"tandem/api/internal/concept"
	"tandem/api/internal/config"
	"tandem/api/internal/drafting"
	"tandem/api/internal/events"
	"tandem/api/internal/friending"
	"tandem/api/internal/posting"
	"tandem/api/internal/saving"
	"tandem/api/internal/search"
	"tandem/api/internal/store"
	"tandem/api/internal/util"
)

// Session is an authenticated caller. Token fields are only set on the
// login/refresh responses that mint them.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

// SessionStore is the Redis-backed refresh/revocation storage.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	Ping(ctx context.Context) error
}

type docStore interface {
	Collection(name string) store.Collection
}

type Service struct {
	cfg      config.Config
	docs     docStore
	authing  *authing.Concept
	drafting *drafting.Concept
	posting  *posting.Concept
	events   *events.Concept
	friends  *friending.Concept
	saving   *saving.Concept
	sessions SessionStore
	search   *search.Service
}

// New wires one concept per collection. searchSvc may be nil when search is
// not configured.
func New(cfg config.Config, docs docStore, sessions SessionStore, searchSvc *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		docs:     docs,
		authing:  authing.New(docs.Collection("users")),
		drafting: drafting.New(docs.Collection("drafts")),
		posting:  posting.New(docs.Collection("posts")),
		events:   events.New(docs.Collection("events")),
		friends:  friending.New(docs.Collection("friend_requests"), docs.Collection("friends")),
		saving:   saving.New(docs.Collection("saves")),
		sessions: sessions,
		search:   searchSvc,
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Ping reports backing-store readiness.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.docs.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return s.sessions.Ping(ctx)
}

// --- sessions ---

// SignUp registers an account. A caller presenting a live session may not
// sign up again.
func (s *Service) SignUp(ctx context.Context, bearer, username, password string) (map[string]any, error) {
	if err := s.assertLoggedOut(ctx, bearer); err != nil {
		return nil, err
	}
	user, err := s.authing.Create(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": user.ID, "username": user.Username}, nil
}

func (s *Service) Login(ctx context.Context, bearer, username, password string) (Session, error) {
	if err := s.assertLoggedOut(ctx, bearer); err != nil {
		return Session{}, err
	}
	user, err := s.authing.Authenticate(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the old one is revoked before a fresh
// session is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.authing.ByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user authing.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.Username,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Username,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.authing.ByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Username,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) error {
	if sess.JTI != "" {
		_ = s.sessions.RevokeAccessToken(ctx, sess.JTI, sess.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) assertLoggedOut(ctx context.Context, bearer string) error {
	if bearer == "" {
		return nil
	}
	if _, err := s.SessionFromToken(ctx, bearer); err == nil {
		return concept.AlreadySessioned()
	}
	return nil
}

// --- accounts ---

func (s *Service) Users(ctx context.Context) (map[string]any, error) {
	users, err := s.authing.All(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, u := range users {
		items = append(items, map[string]any{"id": u.ID, "username": u.Username})
	}
	return map[string]any{"users": items}, nil
}

func (s *Service) UserByUsername(ctx context.Context, username string) (map[string]any, error) {
	user, err := s.authing.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": user.ID, "username": user.Username}, nil
}

func (s *Service) UpdateUsername(ctx context.Context, sess Session, username string) (map[string]any, error) {
	if err := s.authing.UpdateUsername(ctx, sess.UserID, username); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "username": strings.TrimSpace(username)}, nil
}

func (s *Service) UpdatePassword(ctx context.Context, sess Session, currentPassword, newPassword string) (map[string]any, error) {
	if err := s.authing.UpdatePassword(ctx, sess.UserID, currentPassword, newPassword); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

// DeleteAccount ends the session before removing the account, so the token
// cannot outlive the user.
func (s *Service) DeleteAccount(ctx context.Context, sess Session, refreshToken string) error {
	_ = s.Logout(ctx, sess, refreshToken)
	return s.authing.Delete(ctx, sess.UserID)
}

// --- drafts ---

func (s *Service) Drafts(ctx context.Context, sess Session) (map[string]any, error) {
	drafts, err := s.drafting.ByMember(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	items, err := s.draftPayloads(ctx, drafts)
	if err != nil {
		return nil, err
	}
	return map[string]any{"drafts": items}, nil
}

func (s *Service) CreateDraft(ctx context.Context, sess Session, content string) (map[string]any, error) {
	draft, err := s.drafting.Create(ctx, sess.UserID, content)
	if err != nil {
		return nil, err
	}
	return s.draftPayload(ctx, draft)
}

// AddDraftMember resolves the member's username before touching the draft.
func (s *Service) AddDraftMember(ctx context.Context, sess Session, draftID, memberUsername string) (map[string]any, error) {
	member, err := s.authing.ByUsername(ctx, memberUsername)
	if err != nil {
		return nil, err
	}
	if err := s.drafting.AssertMember(ctx, draftID, sess.UserID); err != nil {
		return nil, err
	}
	draft, err := s.drafting.AddMember(ctx, draftID, member.ID)
	if err != nil {
		return nil, err
	}
	return s.draftPayload(ctx, draft)
}

func (s *Service) AddDraftContent(ctx context.Context, sess Session, draftID, content string) (map[string]any, error) {
	if err := s.drafting.AssertMember(ctx, draftID, sess.UserID); err != nil {
		return nil, err
	}
	draft, err := s.drafting.AddContent(ctx, draftID, content)
	if err != nil {
		return nil, err
	}
	return s.draftPayload(ctx, draft)
}

func (s *Service) SelectDraftContent(ctx context.Context, sess Session, draftID, content string) (map[string]any, error) {
	if err := s.drafting.AssertMember(ctx, draftID, sess.UserID); err != nil {
		return nil, err
	}
	draft, err := s.drafting.Select(ctx, draftID, content)
	if err != nil {
		return nil, err
	}
	return s.draftPayload(ctx, draft)
}

func (s *Service) DeselectDraftContent(ctx context.Context, sess Session, draftID, content string) (map[string]any, error) {
	if err := s.drafting.AssertMember(ctx, draftID, sess.UserID); err != nil {
		return nil, err
	}
	draft, err := s.drafting.Deselect(ctx, draftID, content)
	if err != nil {
		return nil, err
	}
	return s.draftPayload(ctx, draft)
}

func (s *Service) DeleteDraft(ctx context.Context, sess Session, draftID string) error {
	if err := s.drafting.AssertMember(ctx, draftID, sess.UserID); err != nil {
		return err
	}
	return s.drafting.Delete(ctx, draftID)
}

// --- posts ---

// ConvertDraft publishes a draft: the members become the approvers, the
// selected fragments become the content, and the draft is deleted. The delete
// is retried once so a blip does not strand a published draft.
func (s *Service) ConvertDraft(ctx context.Context, sess Session, draftID string) (map[string]any, error) {
	if err := s.drafting.AssertMember(ctx, draftID, sess.UserID); err != nil {
		return nil, err
	}
	members, err := s.drafting.Members(ctx, draftID)
	if err != nil {
		return nil, err
	}
	content, err := s.drafting.Content(ctx, draftID)
	if err != nil {
		return nil, err
	}
	post, err := s.posting.Create(ctx, members, content)
	if err != nil {
		return nil, err
	}
	if err := s.drafting.Delete(ctx, draftID); err != nil {
		if err = s.drafting.Delete(ctx, draftID); err != nil {
			return nil, err
		}
	}
	s.indexPost(post)
	return s.postPayload(ctx, post)
}

// Posts lists the caller's feed: posts whose approvers intersect the caller's
// friends (or include the caller), optionally narrowed by author, theme and
// status.
func (s *Service) Posts(ctx context.Context, sess Session, authorUsername, theme, status string) (map[string]any, error) {
	var posts []posting.Post
	var err error
	if authorUsername != "" {
		author, rerr := s.authing.ByUsername(ctx, authorUsername)
		if rerr != nil {
			return nil, rerr
		}
		posts, err = s.posting.ByAuthor(ctx, author.ID)
	} else {
		posts, err = s.posting.All(ctx)
	}
	if err != nil {
		return nil, err
	}

	feed, err := s.feedSet(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	filtered := make([]posting.Post, 0, len(posts))
	for _, p := range posts {
		if theme != "" && p.Theme != theme {
			continue
		}
		if status != "" && string(p.Status) != status {
			continue
		}
		if !intersects(p.Approvers, feed) {
			continue
		}
		filtered = append(filtered, p)
	}

	items, err := s.postPayloads(ctx, filtered)
	if err != nil {
		return nil, err
	}
	return map[string]any{"posts": items}, nil
}

func (s *Service) ApprovePost(ctx context.Context, sess Session, postID string) (map[string]any, error) {
	if err := s.posting.AssertCanApprove(ctx, postID, sess.UserID); err != nil {
		// A repeat approval can trail an interrupted status flip (the approval
		// landed, the flip write failed). Recompute before rejecting so a retry
		// always repairs the stored status.
		var cerr *concept.Error
		if errors.As(err, &cerr) && cerr.Code == "already_approved" {
			if post, rerr := s.posting.EnsureStatus(ctx, postID); rerr == nil && post.Status == posting.StatusApproved {
				s.indexPost(post)
			}
		}
		return nil, err
	}
	post, err := s.posting.Approve(ctx, sess.UserID, postID)
	if err != nil {
		return nil, err
	}
	s.indexPost(post)
	return s.postPayload(ctx, post)
}

func (s *Service) SetPostTheme(ctx context.Context, sess Session, postID, theme string) (map[string]any, error) {
	if err := s.posting.AssertApprover(ctx, postID, sess.UserID); err != nil {
		return nil, err
	}
	if err := s.posting.AssertThemeValid(theme); err != nil {
		return nil, err
	}
	post, err := s.posting.SetTheme(ctx, postID, theme)
	if err != nil {
		return nil, err
	}
	s.indexPost(post)
	return s.postPayload(ctx, post)
}

func (s *Service) DeletePost(ctx context.Context, sess Session, postID string) error {
	if err := s.posting.AssertApprover(ctx, postID, sess.UserID); err != nil {
		return err
	}
	if err := s.posting.Delete(ctx, postID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeletePost(postID)
	}
	return nil
}

// SearchPosts runs full-text search and trims the hits to the caller's feed.
func (s *Service) SearchPosts(ctx context.Context, sess Session, q, theme string, limit, offset int) (map[string]any, error) {
	if s.search == nil {
		return nil, concept.Transient("search is not configured")
	}
	resp := s.search.Search(search.Query{Text: q, FilterTheme: theme, Limit: limit, Offset: offset})

	ids := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		ids = append(ids, r.ID)
	}
	posts, err := s.posting.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	feed, err := s.feedSet(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	visible := make([]posting.Post, 0, len(posts))
	for _, p := range posts {
		if intersects(p.Approvers, feed) {
			visible = append(visible, p)
		}
	}

	items, err := s.postPayloads(ctx, visible)
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": items, "total": resp.Total, "query": resp.Query}, nil
}

func (s *Service) indexPost(post posting.Post) {
	if s.search == nil {
		return
	}
	s.search.IndexPost(search.PostRecord{
		ID:      post.ID,
		Content: strings.Join(post.Content, " "),
		Theme:   post.Theme,
		Status:  string(post.Status),
	})
}

// --- events ---

// Events lists the caller's event feed, optionally narrowed to one host.
func (s *Service) Events(ctx context.Context, sess Session, hostUsername string) (map[string]any, error) {
	var list []events.Event
	var err error
	if hostUsername != "" {
		host, rerr := s.authing.ByUsername(ctx, hostUsername)
		if rerr != nil {
			return nil, rerr
		}
		list, err = s.events.ByHost(ctx, host.ID)
	} else {
		list, err = s.events.All(ctx)
	}
	if err != nil {
		return nil, err
	}

	feed, err := s.feedSet(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	visible := make([]events.Event, 0, len(list))
	for _, e := range list {
		if intersects(e.Hosts, feed) {
			visible = append(visible, e)
		}
	}

	items, err := s.eventPayloads(ctx, visible)
	if err != nil {
		return nil, err
	}
	return map[string]any{"events": items}, nil
}

// CreateEvent opens an event for an approved post. The caller must be one of
// the post's approvers, and the approver set becomes the host set.
func (s *Service) CreateEvent(ctx context.Context, sess Session, postID, location string) (map[string]any, error) {
	if err := s.posting.AssertApprover(ctx, postID, sess.UserID); err != nil {
		return nil, err
	}
	post, err := s.posting.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != posting.StatusApproved {
		return nil, concept.NotAllowed("post_not_approved", "post %s is not approved yet", postID)
	}
	event, err := s.events.Create(ctx, post.Approvers, postID, location)
	if err != nil {
		return nil, err
	}
	return s.eventPayload(ctx, event)
}

func (s *Service) RSVPEvent(ctx context.Context, sess Session, eventID string) (map[string]any, error) {
	event, err := s.events.RSVP(ctx, eventID, sess.UserID)
	if err != nil {
		return nil, err
	}
	return s.eventPayload(ctx, event)
}

func (s *Service) ChangeEventLocation(ctx context.Context, sess Session, eventID, location string) (map[string]any, error) {
	if err := s.events.AssertHost(ctx, eventID, sess.UserID); err != nil {
		return nil, err
	}
	event, err := s.events.ChangeLocation(ctx, eventID, location)
	if err != nil {
		return nil, err
	}
	return s.eventPayload(ctx, event)
}

func (s *Service) DeleteEvent(ctx context.Context, sess Session, eventID string) error {
	if err := s.events.AssertHost(ctx, eventID, sess.UserID); err != nil {
		return err
	}
	return s.events.Delete(ctx, eventID)
}

// --- saves ---

func (s *Service) Saved(ctx context.Context, sess Session) (map[string]any, error) {
	collections, err := s.saving.ByOwner(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(collections))
	for _, c := range collections {
		items = append(items, savePayload(c))
	}
	return map[string]any{"saved": items}, nil
}

func (s *Service) CreateSave(ctx context.Context, sess Session, label string) (map[string]any, error) {
	collection, err := s.saving.Create(ctx, sess.UserID, label)
	if err != nil {
		return nil, err
	}
	return savePayload(collection), nil
}

// SaveItem bookmarks a post id into one of the caller's collections. The id
// is a weak reference: it is recorded as-is, and a post deleted later simply
// dangles until read.
func (s *Service) SaveItem(ctx context.Context, sess Session, label, postID string) (map[string]any, error) {
	collection, err := s.saving.Save(ctx, sess.UserID, label, postID)
	if err != nil {
		return nil, err
	}
	return savePayload(collection), nil
}

// --- friends ---

func (s *Service) FriendRequests(ctx context.Context, sess Session) (map[string]any, error) {
	requests, err := s.friends.Requests(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	items, err := s.requestPayloads(ctx, requests)
	if err != nil {
		return nil, err
	}
	return map[string]any{"requests": items}, nil
}

func (s *Service) SendFriendRequest(ctx context.Context, sess Session, toUsername string) (map[string]any, error) {
	to, err := s.authing.ByUsername(ctx, toUsername)
	if err != nil {
		return nil, err
	}
	req, err := s.friends.SendRequest(ctx, sess.UserID, to.ID)
	if err != nil {
		return nil, err
	}
	items, err := s.requestPayloads(ctx, []friending.Request{req})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (s *Service) RemoveFriendRequest(ctx context.Context, sess Session, toUsername string) error {
	to, err := s.authing.ByUsername(ctx, toUsername)
	if err != nil {
		return err
	}
	return s.friends.RemoveRequest(ctx, sess.UserID, to.ID)
}

func (s *Service) AcceptFriendRequest(ctx context.Context, sess Session, fromUsername string) error {
	from, err := s.authing.ByUsername(ctx, fromUsername)
	if err != nil {
		return err
	}
	return s.friends.AcceptRequest(ctx, from.ID, sess.UserID)
}

func (s *Service) RejectFriendRequest(ctx context.Context, sess Session, fromUsername string) error {
	from, err := s.authing.ByUsername(ctx, fromUsername)
	if err != nil {
		return err
	}
	return s.friends.RejectRequest(ctx, from.ID, sess.UserID)
}

func (s *Service) FriendsOf(ctx context.Context, sess Session) (map[string]any, error) {
	ids, err := s.friends.Friends(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	names, err := s.authing.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	return map[string]any{"friends": names}, nil
}

func (s *Service) RemoveFriend(ctx context.Context, sess Session, friendUsername string) error {
	friend, err := s.authing.ByUsername(ctx, friendUsername)
	if err != nil {
		return err
	}
	return s.friends.RemoveFriend(ctx, sess.UserID, friend.ID)
}

// --- feed helpers ---

// feedSet is the caller plus everyone they are friends with.
func (s *Service) feedSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	friends, err := s.friends.Friends(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(friends)+1)
	set[userID] = struct{}{}
	for _, id := range friends {
		set[id] = struct{}{}
	}
	return set, nil
}

func intersects(ids []string, set map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
