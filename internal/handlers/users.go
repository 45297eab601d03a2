package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pairchat/server/internal/apperr"
	"github.com/pairchat/server/internal/middleware"
	"github.com/pairchat/server/internal/store"
	"github.com/pairchat/server/internal/validate"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserHandler struct {
	Store store.Store
	Log   *zap.Logger
}

type UpdateProfileRequest struct {
	Username    *string `json:"username,omitempty"`
	Email       *string `json:"email,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Password    string  `json:"password"`
	NewPassword *string `json:"new_password,omitempty"`
}

type UpdatePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	user, err := h.Store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, h.Log, apperr.NotFound("User not found"))
			return
		}
		respondError(w, h.Log, apperr.Internal("Database error while querying", err))
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// UpdateProfile partially updates username/email/bio (and optionally the
// password), gated on the caller's current password.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.Log, apperr.InvalidArg("Invalid request body"))
		return
	}

	user, err := h.Store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, h.Log, apperr.NotFound("User not found"))
			return
		}
		respondError(w, h.Log, apperr.Internal("Database error while querying", err))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(w, h.Log, apperr.Unauthorized("Invalid password"))
		return
	}

	newEmail := user.Email
	newUsername := user.Username
	newBio := user.Bio
	newPasswordHash := user.PasswordHash
	var updatedFields []string

	if req.Email != nil && *req.Email != user.Email {
		if !validate.Email(*req.Email) {
			respondError(w, h.Log, apperr.InvalidArg("Email format is invalid"))
			return
		}
		newEmail = *req.Email
		updatedFields = append(updatedFields, "email")
	}
	if req.Username != nil && *req.Username != user.Username {
		if msg, ok := validate.Username(*req.Username); !ok {
			respondError(w, h.Log, apperr.InvalidArg(msg))
			return
		}
		newUsername = *req.Username
		updatedFields = append(updatedFields, "username")
	}
	if req.Bio != nil && (user.Bio == nil || *req.Bio != *user.Bio) {
		newBio = req.Bio
		updatedFields = append(updatedFields, "bio")
	}
	if req.NewPassword != nil {
		if msg, ok := validate.Password(*req.NewPassword); !ok {
			respondError(w, h.Log, apperr.InvalidArg(msg))
			return
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			respondError(w, h.Log, apperr.Internal("Error hashing password", err))
			return
		}
		newPasswordHash = string(hashed)
		updatedFields = append(updatedFields, "password")
	}

	if err := h.Store.UpdateUser(r.Context(), userID, newEmail, newUsername, newBio, newPasswordHash); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(w, h.Log, apperr.AlreadyExists("Username or email already in use"))
			return
		}
		respondError(w, h.Log, apperr.Internal("Failed to update user", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string][]string{
		"updated_fields": updatedFields,
	})
}

func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var req UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.Log, apperr.InvalidArg("Invalid request body"))
		return
	}

	user, err := h.Store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, h.Log, apperr.NotFound("User not found"))
			return
		}
		respondError(w, h.Log, apperr.Internal("Database error while querying", err))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		respondError(w, h.Log, apperr.Unauthorized("Invalid old password"))
		return
	}

	if msg, ok := validate.Password(req.NewPassword); !ok {
		respondError(w, h.Log, apperr.InvalidArg(msg))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, h.Log, apperr.Internal("Error hashing password", err))
		return
	}

	if err := h.Store.UpdatePasswordHash(r.Context(), userID, string(hashed)); err != nil {
		respondError(w, h.Log, apperr.Internal("Failed to update password", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Password updated successfully.",
	})
}
