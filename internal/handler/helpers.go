package handler

import (
	"errors"
	"net/http"
	"strings"

	"threadline/internal/domain"
	"threadline/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// PathParam returns the named path value, writing a 400 when it is blank.
func PathParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	value := strings.TrimSpace(r.PathValue(name))
	if value == "" {
		httputil.RespondError(w, http.StatusBadRequest, label+" is required")
		return "", false
	}
	return value, true
}

// authorizeUser checks that userID matches the authenticated subject.
// Requests without an authenticated subject (auth disabled) are allowed.
func authorizeUser(w http.ResponseWriter, r *http.Request, userID string) bool {
	subject := httputil.GetUserID(r)
	if subject != "" && subject != userID {
		httputil.RespondError(w, http.StatusForbidden, "cannot access another user's conversations")
		return false
	}
	return true
}
