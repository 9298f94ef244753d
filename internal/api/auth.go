package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/evidenca/internal/auth"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB     *sql.DB
	Issuer auth.Issuer
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := store.GetUserByUsername(r.Context(), h.DB, req.Username)
	if err != nil {
		serviceError(w, r, err, "logging in")
		return
	}
	if user == nil {
		slog.Warn("login failed", "username", req.Username, "remote", clientIP(r))
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("login failed", "username", req.Username, "remote", clientIP(r))
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.Issuer.Issue(*user)
	if err != nil {
		slog.Error("issuing token", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("user logged in", "user", user.Username, "role", user.Role)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, User: *user})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expires := time.Now().Add(auth.DefaultTTL)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expires); err != nil {
		serviceError(w, r, err, "logging out")
		return
	}

	slog.Info("user logged out", "user", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		serviceError(w, r, err, "changing password")
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, claims.UserID, string(hash)); err != nil {
		serviceError(w, r, err, "changing password")
		return
	}

	slog.Info("user changed own password", "user", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
