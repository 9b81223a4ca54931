package services

import (
	"context"
	"time"

	"github.com/whisperbox/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MailboxRepository defines persistence operations for mailboxes and the
// acceptance gate.
type MailboxRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error)
	SetAcceptingMessages(ctx context.Context, id primitive.ObjectID, accepting bool) (types.User, error)
	AppendMessage(ctx context.Context, username string, msg types.Message) error
	ListMessages(ctx context.Context, id primitive.ObjectID) ([]types.Message, error)
	DeleteMessage(ctx context.Context, id primitive.ObjectID, messageID primitive.ObjectID) error
}

// MessageService encapsulates anonymous submission, retrieval, deletion, and
// the acceptance gate.
type MessageService struct {
	repo MailboxRepository
}

func NewMessageService(repo MailboxRepository) *MessageService {
	return &MessageService{repo: repo}
}

// Submit appends an anonymous message to the target user's mailbox. The
// acceptance check happens atomically with the append in the store.
func (s *MessageService) Submit(ctx context.Context, username, content string) error {
	msg := types.Message{
		ID:        primitive.NewObjectID(),
		Content:   content,
		CreatedAt: time.Now(),
	}
	return s.repo.AppendMessage(ctx, username, msg)
}

// List returns the caller's mailbox, most recent first. An empty mailbox is
// an empty slice, not an error.
func (s *MessageService) List(ctx context.Context, userID primitive.ObjectID) ([]types.Message, error) {
	messages, err := s.repo.ListMessages(ctx, userID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []types.Message{}
	}
	return messages, nil
}

// Delete removes one message from the caller's own mailbox. Repeated deletes
// of the same id fail with not-found, they never double-count.
func (s *MessageService) Delete(ctx context.Context, userID primitive.ObjectID, messageID primitive.ObjectID) error {
	return s.repo.DeleteMessage(ctx, userID, messageID)
}

// AcceptanceStatus reads the stored flag fresh, unlike the session snapshot.
func (s *MessageService) AcceptanceStatus(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAcceptingMessages, nil
}

// SetAcceptance overwrites the stored flag and returns the updated record.
func (s *MessageService) SetAcceptance(ctx context.Context, userID primitive.ObjectID, accepting bool) (types.User, error) {
	return s.repo.SetAcceptingMessages(ctx, userID, accepting)
}
