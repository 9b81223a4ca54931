package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account and its embedded mailbox.
// Messages live inside the user document; there is no separate messages collection.
type User struct {
	// ID is the unique identifier of the user.
	ID primitive.ObjectID `json:"id" bson:"_id,omitempty"`

	// Username is the unique public name chosen by the user. Shareable
	// profile links point at it.
	Username string `json:"username" bson:"username"`

	// Email is the user's email address. Unique among verified users.
	Email string `json:"email" bson:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" bson:"passwordHash"`

	// VerifyCode is the 6-digit code mailed to the user. Regenerated on
	// every registration attempt; inert once the account is verified.
	VerifyCode string `json:"-" bson:"verifyCode"`

	// VerifyCodeExpiry is the instant at which VerifyCode stops being valid.
	VerifyCodeExpiry time.Time `json:"-" bson:"verifyCodeExpiry"`

	// IsVerified gates login. Only verified accounts may authenticate.
	IsVerified bool `json:"isVerified" bson:"isVerified"`

	// IsAcceptingMessages gates inbound anonymous messages.
	IsAcceptingMessages bool `json:"isAcceptingMessages" bson:"isAcceptingMessages"`

	// Messages is the user's mailbox, append-only except for
	// owner-initiated single-message deletion.
	Messages []Message `json:"-" bson:"messages"`

	// CreatedAt is the timestamp when the account was first registered.
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" bson:"updatedAt"`
}
