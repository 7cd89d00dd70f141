// Package handlers implements the HTTP and websocket endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chatwave/backend/internal/db"
	"github.com/chatwave/backend/internal/logging"
	"github.com/chatwave/backend/internal/middleware"
	"github.com/chatwave/backend/internal/models"
)

// writeJSON serializes data as JSON and writes it to the response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response for simple client errors.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}

// writeErrorWithCause writes an error response and logs the error with stack trace.
// Use this for server errors where you have an underlying error to log.
func writeErrorWithCause(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	writeError(w, status, message)

	// 401/403 are handled by security event logging
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return
	}

	if status >= 400 && err != nil {
		wrappedErr := logging.WrapError(err, message)
		logging.LogErrorWithStatus(ctx, status, "error response", wrappedErr)
	}
}

// userStore is the subset of db.Queries needed to resolve the authenticated user.
type userStore interface {
	GetUserByUsername(ctx context.Context, username string) (db.User, error)
}

// currentUser resolves the authenticated user from the request context claims.
func currentUser(r *http.Request, store userStore) (db.User, bool) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		return db.User{}, false
	}
	user, err := store.GetUserByUsername(r.Context(), claims.Username())
	if err != nil {
		return db.User{}, false
	}
	return user, true
}
