package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

// Identity is the session payload carried by the JWT. It is a snapshot taken
// at login: IsAcceptingMessages may lag behind storage until the next login.
type Identity struct {
	ID                  primitive.ObjectID
	Username            string
	IsVerified          bool
	IsAcceptingMessages bool
}

func identityFromContext(ctx context.Context) (Identity, error) {
	identity, ok := ctx.Value(contextIdentityKey).(Identity)
	if !ok || identity.ID.IsZero() {
		return Identity{}, errors.New("missing identity")
	}
	return identity, nil
}

// Envelope is the JSON shape shared by every response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeSuccess(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: true, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Message: message})
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "ok")
}
