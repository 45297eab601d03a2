package handlers

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pairchat/server/internal/apperr"
	"github.com/pairchat/server/internal/middleware"
	"github.com/pairchat/server/internal/store"
	"go.uber.org/zap"
)

type ChatHandler struct {
	Store store.Store
	Log   *zap.Logger
}

type CodeRequest struct {
	Code int `json:"code"`
}

type MessageRef struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
}

type UpdateMessageRequest struct {
	MessageRef
	Content string `json:"content"`
}

// randomChatCode picks a 5-digit pairing code.
func randomChatCode() int {
	return rand.Intn(65536-10000) + 10000
}

// CreateCode issues a new pairing code for the caller, refusing once five are
// outstanding. A collision with another outstanding code is retried once.
func (h *ChatHandler) CreateCode(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		code := randomChatCode()
		err = h.Store.CreateChatCode(r.Context(), userID, code)
		switch {
		case err == nil:
			h.Log.Info("chat code created", zap.Int64("user_id", userID), zap.Int("code", code))
			respondJSON(w, http.StatusCreated, map[string]int{"code": code})
			return
		case errors.Is(err, store.ErrQuotaExceeded):
			respondError(w, h.Log, apperr.InvalidArg("You already have 5 chat codes."))
			return
		case errors.Is(err, store.ErrDuplicate):
			continue
		default:
			respondError(w, h.Log, apperr.Internal("Failed to create chat code", err))
			return
		}
	}
	respondError(w, h.Log, apperr.Internal("Failed to create chat code", err))
}

func (h *ChatHandler) DeleteCode(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var req CodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.Log, apperr.InvalidArg("Invalid request body"))
		return
	}

	if err := h.Store.DeleteChatCode(r.Context(), userID, req.Code); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, h.Log, apperr.NotFound("Chat code not found."))
			return
		}
		respondError(w, h.Log, apperr.Internal("An error occurred on our end while trying to delete the chat code.", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Chat code deleted successfully",
	})
}

// RedeemCode turns another user's pairing code into a conversation. The code
// is consumed only after the conversation is created; self-redemption and
// already-paired users are rejected without touching the code.
func (h *ChatHandler) RedeemCode(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var req CodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.Log, apperr.InvalidArg("Invalid request body"))
		return
	}

	ownerID, err := h.Store.GetChatCodeOwner(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, h.Log, apperr.NotFound("Chat code not found."))
			return
		}
		respondError(w, h.Log, apperr.Internal("An error occurred while looking up the chat code.", err))
		return
	}

	if ownerID == userID {
		respondError(w, h.Log, apperr.InvalidArg("You cannot start a conversation with yourself."))
		return
	}

	conversationID, err := h.Store.CreateConversation(r.Context(), ownerID, userID)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(w, h.Log, apperr.AlreadyExists("Conversation already exists."))
			return
		}
		respondError(w, h.Log, apperr.Internal("An error occurred while creating the conversation.", err))
		return
	}

	if err := h.Store.DeleteChatCode(r.Context(), ownerID, req.Code); err != nil {
		// The conversation exists; a stale code is only worth a warning.
		h.Log.Warn("failed to delete chat code", zap.Int("code", req.Code), zap.Error(err))
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"conversation_id": conversationID,
		"message":         "Conversation created successfully",
	})
}

// GetMessages serves one page of history, newest first, with a strict-`<`
// timestamp cursor.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	rawID := r.URL.Query().Get("conversationId")
	if rawID == "" {
		respondError(w, h.Log, apperr.InvalidArg("Conversation ID not provided"))
		return
	}
	conversationID, err := uuid.Parse(rawID)
	if err != nil {
		respondError(w, h.Log, apperr.InvalidArg("Invalid conversation ID"))
		return
	}

	if !h.requireParticipant(w, r, conversationID, userID) {
		return
	}

	var cursor *time.Time
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respondError(w, h.Log, apperr.InvalidArg("Invalid cursor format. Use RFC3339 timestamp."))
			return
		}
		cursor = &ts
	}

	limit := store.DefaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, h.Log, apperr.InvalidArg("Invalid limit"))
			return
		}
		// Out-of-range limits are clamped by the store, never rejected.
		limit = parsed
	}

	page, err := h.Store.ListMessages(r.Context(), conversationID, cursor, limit)
	if err != nil {
		respondError(w, h.Log, apperr.Internal("An error occurred while retrieving messages.", err))
		return
	}

	respondJSON(w, http.StatusOK, page)
}

func (h *ChatHandler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var req UpdateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.Log, apperr.InvalidArg("Invalid request body"))
		return
	}

	if !h.requireParticipant(w, r, req.ConversationID, userID) {
		return
	}
	if !h.requireAuthor(w, r, req.MessageRef, userID, "You can only update messages you sent.") {
		return
	}

	editedAt, err := h.Store.UpdateMessage(r.Context(), req.MessageID, userID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmptyContent):
			respondError(w, h.Log, apperr.InvalidArg("Message content must not be empty"))
		case errors.Is(err, store.ErrNotFound):
			respondError(w, h.Log, apperr.NotFound("Message not found in this conversation."))
		default:
			respondError(w, h.Log, apperr.Internal("An error occurred while updating the message.", err))
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message":   "Message updated successfully.",
		"edited_at": editedAt.Format(time.RFC3339Nano),
	})
}

func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var req MessageRef
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.Log, apperr.InvalidArg("Invalid request body"))
		return
	}

	if !h.requireParticipant(w, r, req.ConversationID, userID) {
		return
	}
	if !h.requireAuthor(w, r, req, userID, "You can only delete messages you sent.") {
		return
	}

	if err := h.Store.DeleteMessage(r.Context(), req.MessageID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, h.Log, apperr.NotFound("Message not found in this conversation."))
			return
		}
		respondError(w, h.Log, apperr.Internal("An error occurred while deleting the message.", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Message deleted successfully.",
	})
}

// requireParticipant runs the participation guard, writing the response on
// failure. A storage fault is an internal error, never a silent denial.
func (h *ChatHandler) requireParticipant(w http.ResponseWriter, r *http.Request, conversationID uuid.UUID, userID int64) bool {
	isParticipant, err := h.Store.IsParticipant(r.Context(), conversationID, userID)
	if err != nil {
		respondError(w, h.Log, apperr.Internal("An error occurred while verifying conversation access.", err))
		return false
	}
	if !isParticipant {
		h.Log.Warn("non-participant attempted conversation access",
			zap.Int64("user_id", userID), zap.String("conversation_id", conversationID.String()))
		respondError(w, h.Log, apperr.Forbidden("You are not a participant in this conversation."))
		return false
	}
	return true
}

func (h *ChatHandler) requireAuthor(w http.ResponseWriter, r *http.Request, ref MessageRef, userID int64, denial string) bool {
	authorID, err := h.Store.GetMessageAuthor(r.Context(), ref.ConversationID, ref.MessageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, h.Log, apperr.NotFound("Message not found in this conversation."))
			return false
		}
		respondError(w, h.Log, apperr.Internal("An error occurred while verifying the message.", err))
		return false
	}
	if authorID != userID {
		respondError(w, h.Log, apperr.Forbidden(denial))
		return false
	}
	return true
}
