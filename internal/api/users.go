package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/service"
	"github.com/erazemk/evidenca/internal/store"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	DB *sql.DB
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=admin manager user"`
}

type updateUserRequest struct {
	Role string `json:"role" validate:"required,oneof=admin manager user"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		serviceError(w, r, err, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := service.Validate(req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req.Username, string(hash), req.Role)
	if err != nil {
		serviceError(w, r, err, "failed to create user")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("user created", "user", claims.Username, "new_user", req.Username, "role", req.Role)
	jsonResponse(w, http.StatusCreated, user)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.liveUser(r, id)
	if err != nil {
		serviceError(w, r, err, "failed to get user")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := service.Validate(req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.liveUser(r, id); err != nil {
		serviceError(w, r, err, "failed to update user")
		return
	}
	if err := store.UpdateUser(r.Context(), h.DB, id, req.Role); err != nil {
		serviceError(w, r, err, "failed to update user")
		return
	}

	user, err := h.liveUser(r, id)
	if err != nil {
		serviceError(w, r, err, "failed to update user")
		return
	}
	claims := GetClaims(r.Context())
	slog.Info("user role updated", "user", claims.Username, "target_user", user.Username, "new_role", req.Role)
	jsonResponse(w, http.StatusOK, user)
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, err := h.liveUser(r, id)
	if err != nil {
		serviceError(w, r, err, "failed to reset password")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, id, string(hash)); err != nil {
		serviceError(w, r, err, "failed to reset password")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("user password reset", "user", claims.Username, "target_user", target.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	// Prevent self-deletion.
	claims := GetClaims(r.Context())
	if claims != nil && claims.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	target, err := h.liveUser(r, id)
	if err != nil {
		serviceError(w, r, err, "failed to delete user")
		return
	}

	if err := store.DeleteUser(r.Context(), h.DB, id); err != nil {
		serviceError(w, r, err, "failed to delete user")
		return
	}

	slog.Info("user deleted", "user", claims.Username, "deleted_user", target.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (h *UsersHandler) liveUser(r *http.Request, id int64) (*model.User, error) {
	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		return nil, err
	}
	if user == nil || user.DeletedAt != nil {
		return nil, fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}
	return user, nil
}
