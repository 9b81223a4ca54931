package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/whisperbox/apiserver/internal/mail"
	"github.com/whisperbox/apiserver/internal/store"
	"github.com/whisperbox/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const verifyCodeTTL = time.Hour

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetVerifiedByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	ResetCredentials(ctx context.Context, id primitive.ObjectID, passwordHash, code string, expiry time.Time) error
	MarkVerified(ctx context.Context, id primitive.ObjectID) error
}

// UserService encapsulates registration, verification, and authentication.
type UserService struct {
	repo   UserRepository
	sender mail.Sender
}

func NewUserService(repo UserRepository, sender mail.Sender) *UserService {
	return &UserService{repo: repo, sender: sender}
}

// Register creates or refreshes an unverified account and mails the
// verification code. Re-registering an unverified email overwrites that
// account's password and code in place; it never creates a duplicate.
// The account persists even when the mail dispatch fails.
func (s *UserService) Register(ctx context.Context, username, email, password string) error {
	if _, err := s.repo.GetVerifiedByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	code, err := generateVerifyCode()
	if err != nil {
		return err
	}
	expiry := time.Now().Add(verifyCodeTTL)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsVerified {
			return ErrEmailTaken
		}
		if err := s.repo.ResetCredentials(ctx, existing.ID, string(hashed), code, expiry); err != nil {
			return err
		}
	case errors.Is(err, store.ErrNotFound):
		_, err := s.repo.Create(ctx, types.User{
			Username:            username,
			Email:               email,
			PasswordHash:        string(hashed),
			VerifyCode:          code,
			VerifyCodeExpiry:    expiry,
			IsVerified:          false,
			IsAcceptingMessages: true,
			Messages:            []types.Message{},
		})
		if err != nil {
			return err
		}
	default:
		return err
	}

	if err := s.sender.SendVerification(ctx, email, username, code); err != nil {
		return fmt.Errorf("%w: %w", ErrMailDispatch, err)
	}
	return nil
}

// Verify activates the account when the code matches and has not expired.
// Code and expiry stay stored afterwards but are inert.
func (s *UserService) Verify(ctx context.Context, username, code string) error {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	if user.VerifyCode != code {
		return ErrInvalidCode
	}
	if !time.Now().Before(user.VerifyCodeExpiry) {
		return ErrCodeExpired
	}
	return s.repo.MarkVerified(ctx, user.ID)
}

// IsUsernameAvailable reports whether no verified account holds the username.
// Unverified holders do not block.
func (s *UserService) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	_, err := s.repo.GetVerifiedByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	return false, err
}

// Authenticate matches identifier against username or email and validates the
// password. Verification status is checked before the password comparison so
// unverified accounts cannot be timing-probed.
func (s *UserService) Authenticate(ctx context.Context, identifier, password string) (types.User, error) {
	user, err := s.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		return types.User{}, err
	}

	if !user.IsVerified {
		return types.User{}, ErrNotVerified
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrBadCredentials
	}
	return user, nil
}

func generateVerifyCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
