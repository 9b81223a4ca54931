package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/whisperbox/apiserver/internal/services"
	"github.com/whisperbox/apiserver/internal/store"
	"github.com/whisperbox/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxMessageLength = 300

// MessageHandler provides mailbox and acceptance-gate endpoints.
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler constructs a handler with the provided service.
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// MessageRouter registers mailbox routes on the given router. Submission is
// open to anonymous callers; everything else requires a session.
func MessageRouter(r chi.Router, messageService *services.MessageService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewMessageHandler(messageService)

	r.Post("/send-message", handler.SendMessage)
	r.With(authMiddleware).Get("/get-messages", handler.GetMessages)
	r.With(authMiddleware).Delete("/delete-message/{messageID}", handler.DeleteMessage)
	r.With(authMiddleware).Get("/accept-messages", handler.GetAcceptMessages)
	r.With(authMiddleware).Post("/accept-messages", handler.SetAcceptMessages)
}

// SendMessage appends an anonymous message to the named user's mailbox.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	content := strings.TrimSpace(req.Content)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}
	if content == "" {
		writeError(w, http.StatusBadRequest, "Message content is required")
		return
	}
	if len(content) > maxMessageLength {
		writeError(w, http.StatusBadRequest, "Message content must be at most 300 characters")
		return
	}

	err := h.messageService.Submit(r.Context(), req.Username, content)
	switch {
	case err == nil:
		writeSuccess(w, http.StatusCreated, "Message sent successfully")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, store.ErrNotAccepting):
		writeError(w, http.StatusForbidden, "User is not accepting messages")
	default:
		writeError(w, http.StatusInternalServerError, "Error sending message")
	}
}

// GetMessages returns the caller's own mailbox, most recent first.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	messages, err := h.messageService.List(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Error retrieving messages")
		return
	}

	writeJSON(w, http.StatusOK, MessagesResponse{
		Envelope: Envelope{Success: true, Message: "Messages retrieved"},
		Messages: messages,
	})
}

// DeleteMessage removes one message by id from the caller's own mailbox.
// Deleting an already-removed id fails with not-found.
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	messageID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Message not found or already deleted")
		return
	}

	if err := h.messageService.Delete(r.Context(), identity.ID, messageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Message not found or already deleted")
			return
		}
		writeError(w, http.StatusInternalServerError, "Error deleting message")
		return
	}

	writeSuccess(w, http.StatusOK, "Message deleted")
}

// GetAcceptMessages reads the acceptance flag fresh from storage, unlike the
// snapshot in the session token.
func (h *MessageHandler) GetAcceptMessages(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	accepting, err := h.messageService.AcceptanceStatus(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Error retrieving message acceptance status")
		return
	}

	writeJSON(w, http.StatusOK, AcceptMessagesResponse{
		Envelope:            Envelope{Success: true, Message: "Message acceptance status retrieved"},
		IsAcceptingMessages: accepting,
	})
}

// SetAcceptMessages overwrites the acceptance flag and returns the updated
// record.
func (h *MessageHandler) SetAcceptMessages(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req AcceptMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.messageService.SetAcceptance(r.Context(), identity.ID, req.AcceptMessages)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Unable to find user to update message acceptance status")
			return
		}
		writeError(w, http.StatusInternalServerError, "Error updating message acceptance status")
		return
	}

	writeJSON(w, http.StatusOK, UpdatedUserResponse{
		Envelope:    Envelope{Success: true, Message: "Message acceptance status updated successfully"},
		UpdatedUser: user,
	})
}

type SendMessageRequest struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

type AcceptMessagesRequest struct {
	AcceptMessages bool `json:"acceptMessages"`
}

type MessagesResponse struct {
	Envelope
	Messages []types.Message `json:"messages"`
}

type AcceptMessagesResponse struct {
	Envelope
	IsAcceptingMessages bool `json:"isAcceptingMessages"`
}

type UpdatedUserResponse struct {
	Envelope
	UpdatedUser types.User `json:"updatedUser"`
}
