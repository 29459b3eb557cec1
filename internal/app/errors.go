package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"tandem/api/internal/auth"
	"tandem/api/internal/concept"
	"tandem/api/internal/session"
	"tandem/api/internal/store"
)

// errorFormats maps error codes to message templates whose verbs are filled
// with usernames resolved from the error's carried user ids. Codes without an
// entry render their original message, raw ids included.
var errorFormats = map[string]string{
	"not_a_member":     "user %s is not a member of this draft",
	"not_an_approver":  "user %s is not an approver of this post",
	"already_approved": "user %s has already approved this post",
	"not_a_host":       "user %s is not a host of this event",
	"user_missing":     "user %s does not exist",
	"request_missing":  "no pending friend request between %s and %s",
	"request_exists":   "a friend request involving %s already exists",
	"already_friends":  "%s and %s are already friends",
	"not_friends":      "%s and %s are not friends",
}

// renderError produces the user-facing message for a concept error, resolving
// any carried user ids to usernames in one batched lookup.
func (s *Service) renderError(ctx context.Context, e *concept.Error) string {
	format, ok := errorFormats[e.Code]
	if !ok || len(e.UserIDs) == 0 {
		return e.Msg
	}
	names, err := s.authing.Resolve(ctx, e.UserIDs)
	if err != nil {
		log.Printf("errors: resolve users for %s: %v", e.Code, err)
		return e.Msg
	}
	args := make([]any, len(names))
	for i, name := range names {
		args[i] = name
	}
	return fmt.Sprintf(format, args...)
}

func mapError(err error) (status int, code string) {
	var cerr *concept.Error
	if errors.As(err, &cerr) {
		switch cerr.Kind {
		case concept.KindNotFound:
			return http.StatusNotFound, cerr.Code
		case concept.KindNotAllowed:
			return http.StatusForbidden, cerr.Code
		case concept.KindUnauthenticated:
			return http.StatusUnauthorized, cerr.Code
		case concept.KindAlreadySessioned:
			return http.StatusForbidden, cerr.Code
		case concept.KindValidation:
			return http.StatusUnprocessableEntity, cerr.Code
		case concept.KindTransient:
			return http.StatusServiceUnavailable, cerr.Code
		}
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "unauthenticated"
	}
	if errors.Is(err, session.ErrNoSession) {
		return http.StatusUnauthorized, "unauthenticated"
	}
	if errors.Is(err, store.ErrConflict) {
		return http.StatusConflict, "conflict"
	}
	if errors.Is(err, store.ErrNoDoc) {
		return http.StatusNotFound, "not_found"
	}
	return http.StatusInternalServerError, "server_error"
}

// errorMessage renders the message sent to the client. Internal errors never
// leak their detail.
func (s *Service) errorMessage(ctx context.Context, err error) string {
	var cerr *concept.Error
	if errors.As(err, &cerr) {
		return s.renderError(ctx, cerr)
	}
	status, _ := mapError(err)
	if status == http.StatusInternalServerError {
		return "server error"
	}
	return err.Error()
}
