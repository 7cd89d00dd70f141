package handlers

import (
	"net/http"

	"github.com/chatwave/backend/internal/db"
	"github.com/chatwave/backend/internal/models"
)

// UserHandler serves account information for authenticated users.
type UserHandler struct {
	queries *db.Queries
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(queries *db.Queries) *UserHandler {
	return &UserHandler{queries: queries}
}

// Me returns the authenticated user's account.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r, h.queries)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	writeJSON(w, http.StatusOK, models.UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}
