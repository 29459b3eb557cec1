package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tandem/api/internal/auth"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

type route struct {
	method  string
	pattern string
	handler http.HandlerFunc
}

// routes is the full route table. Handlers wrapped in withSession run steps
// 2-5 of the sync order; the wrapper does step 1.
func (s *HTTPServer) routes() []route {
	return []route{
		{http.MethodGet, "/api/health", s.handleHealth},
		{http.MethodGet, "/api/ready", s.handleReady},

		{http.MethodGet, "/api/session", s.handleSession},
		{http.MethodPost, "/api/session/refresh", s.handleRefresh},
		{http.MethodPost, "/api/login", s.handleLogin},
		{http.MethodPost, "/api/logout", s.withSession(s.handleLogout)},

		{http.MethodPost, "/api/users", s.handleSignUp},
		{http.MethodGet, "/api/users", s.handleUsers},
		{http.MethodGet, "/api/users/{username}", s.handleUserByUsername},
		{http.MethodPatch, "/api/users/username", s.withSession(s.handleUpdateUsername)},
		{http.MethodPatch, "/api/users/password", s.withSession(s.handleUpdatePassword)},
		{http.MethodDelete, "/api/users", s.withSession(s.handleDeleteAccount)},

		{http.MethodGet, "/api/posts", s.withSession(s.handlePosts)},
		{http.MethodGet, "/api/posts/search", s.withSession(s.handleSearchPosts)},
		{http.MethodPost, "/api/posts", s.withSession(s.handleConvertDraft)},
		{http.MethodPatch, "/api/posts/approve/{id}", s.withSession(s.handleApprovePost)},
		{http.MethodPatch, "/api/posts/theme/{id}", s.withSession(s.handleSetPostTheme)},
		{http.MethodDelete, "/api/posts/delete/{id}", s.withSession(s.handleDeletePost)},

		{http.MethodGet, "/api/drafts", s.withSession(s.handleDrafts)},
		{http.MethodPost, "/api/drafts", s.withSession(s.handleCreateDraft)},
		{http.MethodPatch, "/api/drafts/add/{id}", s.withSession(s.handleAddDraftContent)},
		{http.MethodPatch, "/api/drafts/select/{id}", s.withSession(s.handleSelectContent)},
		{http.MethodPatch, "/api/drafts/deselect/{id}", s.withSession(s.handleDeselectContent)},
		{http.MethodDelete, "/api/drafts/delete/{id}", s.withSession(s.handleDeleteDraft)},
		{http.MethodPatch, "/api/drafts/{id}", s.withSession(s.handleAddDraftMember)},

		{http.MethodGet, "/api/events", s.withSession(s.handleEvents)},
		{http.MethodPost, "/api/events", s.withSession(s.handleCreateEvent)},
		{http.MethodPatch, "/api/events/rsvp/{id}", s.withSession(s.handleRSVP)},
		{http.MethodPatch, "/api/events/location/{id}", s.withSession(s.handleChangeLocation)},
		{http.MethodDelete, "/api/events/delete/{id}", s.withSession(s.handleDeleteEvent)},

		{http.MethodGet, "/api/saved", s.withSession(s.handleSaved)},
		{http.MethodPost, "/api/save", s.withSession(s.handleCreateSave)},
		{http.MethodPatch, "/api/save", s.withSession(s.handleSaveItem)},

		{http.MethodGet, "/api/friend/requests", s.withSession(s.handleFriendRequests)},
		{http.MethodPost, "/api/friend/requests/{to}", s.withSession(s.handleSendFriendRequest)},
		{http.MethodDelete, "/api/friend/requests/{to}", s.withSession(s.handleRemoveFriendRequest)},
		{http.MethodPut, "/api/friend/accept/{from}", s.withSession(s.handleAcceptFriendRequest)},
		{http.MethodPut, "/api/friend/reject/{from}", s.withSession(s.handleRejectFriendRequest)},
		{http.MethodGet, "/api/friends", s.withSession(s.handleFriends)},
		{http.MethodDelete, "/api/friends/{friend}", s.withSession(s.handleRemoveFriend)},
	}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.middleware)
	for _, rt := range s.routes() {
		r.MethodFunc(rt.method, rt.pattern, rt.handler)
	}
	r.MethodFunc(http.MethodOptions, "/*", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNoContent, map[string]any{})
	})
	return r
}

// --- infrastructure handlers ---

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":     false,
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "ready"})
}

// --- session handlers ---

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "username": nil})
		return
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "username": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"username":      sess.UserName,
		"userId":        sess.UserID,
	})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	sess, err := s.service.Login(r.Context(), bearerToken(r), body.Username, body.Password)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":        sess.Token,
		"refreshToken": sess.RefreshToken,
		"username":     sess.UserName,
		"userId":       sess.UserID,
	})
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	sess, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "refresh token invalid")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":        sess.Token,
		"refreshToken": sess.RefreshToken,
		"username":     sess.UserName,
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeBody(r, &body)
	_ = s.service.Logout(r.Context(), sess, body.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- account handlers ---

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.SignUp(r.Context(), bearerToken(r), body.Username, body.Password)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request) {
	payload, err := s.service.Users(r.Context())
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleUserByUsername(w http.ResponseWriter, r *http.Request) {
	payload, err := s.service.UserByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleUpdateUsername(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Username string `json:"username"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.UpdateUsername(r.Context(), sess, body.Username)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleUpdatePassword(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.UpdatePassword(r.Context(), sess, body.CurrentPassword, body.NewPassword)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleDeleteAccount(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeBody(r, &body)
	if err := s.service.DeleteAccount(r.Context(), sess, body.RefreshToken); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- post handlers ---

func (s *HTTPServer) handlePosts(w http.ResponseWriter, r *http.Request, sess Session) {
	q := r.URL.Query()
	payload, err := s.service.Posts(r.Context(), sess,
		strings.TrimSpace(q.Get("author")),
		strings.TrimSpace(q.Get("theme")),
		strings.TrimSpace(q.Get("status")))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleSearchPosts(w http.ResponseWriter, r *http.Request, sess Session) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), 20)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation", "limit must be an integer")
		return
	}
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation", "offset must be an integer")
		return
	}
	payload, err := s.service.SearchPosts(r.Context(), sess,
		strings.TrimSpace(q.Get("q")), strings.TrimSpace(q.Get("theme")), limit, offset)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleConvertDraft(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		DraftID string `json:"draftId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.ConvertDraft(r.Context(), sess, body.DraftID)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleApprovePost(w http.ResponseWriter, r *http.Request, sess Session) {
	payload, err := s.service.ApprovePost(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleSetPostTheme(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Theme string `json:"theme"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.SetPostTheme(r.Context(), sess, chi.URLParam(r, "id"), body.Theme)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleDeletePost(w http.ResponseWriter, r *http.Request, sess Session) {
	if err := s.service.DeletePost(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- draft handlers ---

func (s *HTTPServer) handleDrafts(w http.ResponseWriter, r *http.Request, sess Session) {
	payload, err := s.service.Drafts(r.Context(), sess)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleCreateDraft(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.CreateDraft(r.Context(), sess, body.Content)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleAddDraftMember(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Member string `json:"member"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.AddDraftMember(r.Context(), sess, chi.URLParam(r, "id"), body.Member)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleAddDraftContent(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.AddDraftContent(r.Context(), sess, chi.URLParam(r, "id"), body.Content)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleSelectContent(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.SelectDraftContent(r.Context(), sess, chi.URLParam(r, "id"), body.Content)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleDeselectContent(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.DeselectDraftContent(r.Context(), sess, chi.URLParam(r, "id"), body.Content)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleDeleteDraft(w http.ResponseWriter, r *http.Request, sess Session) {
	if err := s.service.DeleteDraft(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- event handlers ---

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request, sess Session) {
	payload, err := s.service.Events(r.Context(), sess, strings.TrimSpace(r.URL.Query().Get("host")))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleCreateEvent(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		PostID   string `json:"postId"`
		Location string `json:"location"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.CreateEvent(r.Context(), sess, body.PostID, body.Location)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleRSVP(w http.ResponseWriter, r *http.Request, sess Session) {
	payload, err := s.service.RSVPEvent(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleChangeLocation(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Location string `json:"location"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.ChangeEventLocation(r.Context(), sess, chi.URLParam(r, "id"), body.Location)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleDeleteEvent(w http.ResponseWriter, r *http.Request, sess Session) {
	if err := s.service.DeleteEvent(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- save handlers ---

func (s *HTTPServer) handleSaved(w http.ResponseWriter, r *http.Request, sess Session) {
	payload, err := s.service.Saved(r.Context(), sess)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleCreateSave(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Label string `json:"label"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.CreateSave(r.Context(), sess, body.Label)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleSaveItem(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Label  string `json:"label"`
		PostID string `json:"postId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	payload, err := s.service.SaveItem(r.Context(), sess, body.Label, body.PostID)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// --- friend handlers ---

func (s *HTTPServer) handleFriendRequests(w http.ResponseWriter, r *http.Request, sess Session) {
	payload, err := s.service.FriendRequests(r.Context(), sess)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleSendFriendRequest(w http.ResponseWriter, r *http.Request, sess Session) {
	payload, err := s.service.SendFriendRequest(r.Context(), sess, chi.URLParam(r, "to"))
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleRemoveFriendRequest(w http.ResponseWriter, r *http.Request, sess Session) {
	if err := s.service.RemoveFriendRequest(r.Context(), sess, chi.URLParam(r, "to")); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleAcceptFriendRequest(w http.ResponseWriter, r *http.Request, sess Session) {
	if err := s.service.AcceptFriendRequest(r.Context(), sess, chi.URLParam(r, "from")); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleRejectFriendRequest(w http.ResponseWriter, r *http.Request, sess Session) {
	if err := s.service.RejectFriendRequest(r.Context(), sess, chi.URLParam(r, "from")); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleFriends(w http.ResponseWriter, r *http.Request, sess Session) {
	payload, err := s.service.FriendsOf(r.Context(), sess)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleRemoveFriend(w http.ResponseWriter, r *http.Request, sess Session) {
	if err := s.service.RemoveFriend(r.Context(), sess, chi.URLParam(r, "friend")); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- plumbing ---

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess Session)

func (s *HTTPServer) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		sess, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
				return
			}
			s.writeMappedError(w, r, err)
			return
		}
		next(w, r, sess)
	}
}

func (s *HTTPServer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapError(err)
	writeError(w, status, code, s.service.errorMessage(r.Context(), err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"code": code, "error": message})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func queryInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
