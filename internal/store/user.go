package store

import (
	"context"
	"errors"
	"time"

	"github.com/whisperbox/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

// UserRepository handles persistence for users and their embedded mailboxes.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the uniqueness indexes the account lifecycle relies on:
// one email per document, and one verified holder per username. Unverified
// documents may share a username until one of them verifies.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "isVerified", Value: true}}),
		},
	})
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) GetVerifiedByUsername(ctx context.Context, username string) (types.User, error) {
	return r.findOne(ctx, bson.M{"username": username, "isVerified": true})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetByIdentifier matches either username or email, first match wins.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (types.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"email": identifier},
		bson.M{"username": identifier},
	}}
	return r.findOne(ctx, filter)
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (types.User, error) {
	var user types.User
	err := r.coll.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Messages == nil {
		user.Messages = []types.Message{}
	}

	result, err := r.coll.InsertOne(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	return user, nil
}

// ResetCredentials overwrites password hash, verification code, and expiry on
// an existing document. This is the recovery path for abandoned sign-ups.
func (r *UserRepository) ResetCredentials(ctx context.Context, id primitive.ObjectID, passwordHash, code string, expiry time.Time) error {
	update := bson.M{"$set": bson.M{
		"passwordHash":     passwordHash,
		"verifyCode":       code,
		"verifyCodeExpiry": expiry,
		"updatedAt":        time.Now(),
	}}
	result, err := r.coll.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{
		"isVerified": true,
		"updatedAt":  time.Now(),
	}}
	result, err := r.coll.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAcceptingMessages overwrites the acceptance flag and returns the updated
// document.
func (r *UserRepository) SetAcceptingMessages(ctx context.Context, id primitive.ObjectID, accepting bool) (types.User, error) {
	update := bson.M{"$set": bson.M{
		"isAcceptingMessages": accepting,
		"updatedAt":           time.Now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user types.User
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// AppendMessage pushes a message onto the target user's mailbox. The
// acceptance check and the push are one conditional update, so a flag flip
// between check and append cannot slip a message through.
func (r *UserRepository) AppendMessage(ctx context.Context, username string, msg types.Message) error {
	filter := bson.M{"username": username, "isAcceptingMessages": true}
	update := bson.M{"$push": bson.M{"messages": msg}}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// No match: either the user is gone or the gate is closed.
	err = r.coll.FindOne(ctx, bson.M{"username": username}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrNotAccepting
}

// ListMessages returns the user's mailbox sorted by createdAt descending.
// Storage order is insertion order, so the sort happens in the pipeline.
func (r *UserRepository) ListMessages(ctx context.Context, id primitive.ObjectID) ([]types.Message, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
		{{Key: "$unwind", Value: "$messages"}},
		{{Key: "$sort", Value: bson.M{"messages.createdAt": -1}}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$_id",
			"messages": bson.M{"$push": "$messages"},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Messages []types.Message `bson:"messages"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	if len(results) > 0 {
		return results[0].Messages, nil
	}

	// $unwind drops users with empty mailboxes, so an empty result needs a
	// second look to tell "no messages" apart from "no user".
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return []types.Message{}, nil
}

// DeleteMessage pulls at most one message by id from the owner's mailbox.
// A missing id and a message owned by someone else both come back ErrNotFound.
func (r *UserRepository) DeleteMessage(ctx context.Context, id primitive.ObjectID, messageID primitive.ObjectID) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$pull": bson.M{"messages": bson.M{"_id": messageID}}}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}
