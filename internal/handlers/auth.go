package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/chatwave/backend/internal/crypto"
	"github.com/chatwave/backend/internal/db"
	"github.com/chatwave/backend/internal/models"
	"github.com/chatwave/backend/internal/services"
)

// AuthHandler manages account registration and login.
type AuthHandler struct {
	queries     *db.Queries
	authService *services.AuthService
}

// NewAuthHandler creates an AuthHandler with the required dependencies.
func NewAuthHandler(queries *db.Queries, authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		queries:     queries,
		authService: authService,
	}
}

// Register creates a new account. Usernames and emails are unique.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email, and password are required")
		return
	}

	if _, err := h.queries.GetUserByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusBadRequest, "username already registered")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to look up username", err)
		return
	}

	if _, err := h.queries.GetUserByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusBadRequest, "email already registered")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to look up email", err)
		return
	}

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to hash password", err)
		return
	}

	user, err := h.queries.CreateUser(r.Context(), db.CreateUserParams{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to create user", err)
		return
	}

	writeJSON(w, http.StatusCreated, models.UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// Login verifies credentials and issues an access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.queries.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		// Same response for unknown user and bad password.
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}

	if !crypto.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}

	token, err := h.authService.GenerateToken(user.Username)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	writeJSON(w, http.StatusOK, models.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}
