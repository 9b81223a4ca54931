package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is a single anonymous submission embedded in a user document.
// Immutable after creation; removable only by the mailbox owner.
type Message struct {
	// ID is unique within the parent user's mailbox.
	ID primitive.ObjectID `json:"id" bson:"_id"`

	// Content is the anonymous free-text body.
	Content string `json:"content" bson:"content"`

	// CreatedAt is the insertion timestamp, assigned by the server.
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
