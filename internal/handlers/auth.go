package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pairchat/server/internal/apperr"
	"github.com/pairchat/server/internal/auth"
	"github.com/pairchat/server/internal/store"
	"github.com/pairchat/server/internal/validate"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	Store  store.Store
	Secret []byte
	Log    *zap.Logger
}

type RegisterRequest struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Bio      *string `json:"bio,omitempty"`
}

type LoginRequest struct {
	Person   string `json:"person"`
	Password string `json:"password"`
	IsEmail  bool   `json:"is_email"`
}

// SessionResponse is the shared register/login response body.
type SessionResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	ID      *int64 `json:"id,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.Log, apperr.InvalidArg("Invalid request body"))
		return
	}

	if msg, ok := validate.Username(req.Username); !ok {
		respondError(w, h.Log, apperr.InvalidArg(msg))
		return
	}
	if !validate.Email(req.Email) {
		respondError(w, h.Log, apperr.InvalidArg("Email format is invalid"))
		return
	}
	if msg, ok := validate.Password(req.Password); !ok {
		respondError(w, h.Log, apperr.InvalidArg(msg))
		return
	}

	usernameTaken, emailTaken, err := h.Store.UserExists(r.Context(), req.Username, req.Email)
	if err != nil {
		respondError(w, h.Log, apperr.Internal("A database error occurred on our end.", err))
		return
	}
	switch {
	case usernameTaken && emailTaken:
		respondError(w, h.Log, apperr.AlreadyExists("This user already exists."))
		return
	case usernameTaken:
		respondError(w, h.Log, apperr.AlreadyExists("Username already exists"))
		return
	case emailTaken:
		respondError(w, h.Log, apperr.AlreadyExists("Email already exists"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, h.Log, apperr.Internal("An error occurred on our end.", err))
		return
	}

	id, err := h.Store.CreateUser(r.Context(), req.Username, req.Email, string(hashed), req.Bio)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(w, h.Log, apperr.AlreadyExists("This user already exists."))
			return
		}
		respondError(w, h.Log, apperr.Internal("A database error occurred on our end.", err))
		return
	}

	if err := h.setSession(w, id); err != nil {
		respondError(w, h.Log, apperr.Internal("An error occurred on our end.", err))
		return
	}

	h.Log.Info("user registered", zap.Int64("user_id", id))
	respondJSON(w, http.StatusCreated, SessionResponse{
		OK:      true,
		Message: "User successfully created.",
		ID:      &id,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.Log, apperr.InvalidArg("Invalid request body"))
		return
	}
	if req.Person == "" || req.Password == "" {
		respondError(w, h.Log, apperr.InvalidArg("Username/email and password are required"))
		return
	}

	lookup := h.Store.GetUserByUsername
	if req.IsEmail {
		lookup = h.Store.GetUserByEmail
	}

	user, err := lookup(r.Context(), req.Person)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, h.Log, apperr.Unauthorized("Invalid credentials"))
			return
		}
		respondError(w, h.Log, apperr.Internal("A database error occurred on our end.", err))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(w, h.Log, apperr.Unauthorized("Invalid credentials"))
		return
	}

	// A fresh token on every login; sessions are never silently refreshed.
	if err := h.setSession(w, user.ID); err != nil {
		respondError(w, h.Log, apperr.Internal("An error occurred on our end.", err))
		return
	}

	respondJSON(w, http.StatusOK, SessionResponse{
		OK:      true,
		Message: "Logged in successfully.",
		ID:      &user.ID,
	})
}

func (h *AuthHandler) setSession(w http.ResponseWriter, userID int64) error {
	token, err := auth.SignToken(userID, h.Secret)
	if err != nil {
		return err
	}
	http.SetCookie(w, auth.SessionCookie(token))
	return nil
}
