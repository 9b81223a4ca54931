package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/whisperbox/apiserver/internal/services"
	"github.com/whisperbox/apiserver/internal/store"
	"github.com/whisperbox/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fakeRepo backs both the user and mailbox services in handler tests,
// mirroring the store contract.
type fakeRepo struct {
	users    []types.User
	mailErrs []error
}

func (f *fakeRepo) find(match func(types.User) bool) (types.User, error) {
	for _, u := range f.users {
		if match(u) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeRepo) GetByID(_ context.Context, id primitive.ObjectID) (types.User, error) {
	return f.find(func(u types.User) bool { return u.ID == id })
}

func (f *fakeRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	return f.find(func(u types.User) bool { return u.Username == username })
}

func (f *fakeRepo) GetVerifiedByUsername(_ context.Context, username string) (types.User, error) {
	return f.find(func(u types.User) bool { return u.Username == username && u.IsVerified })
}

func (f *fakeRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	return f.find(func(u types.User) bool { return u.Email == email })
}

func (f *fakeRepo) GetByIdentifier(_ context.Context, identifier string) (types.User, error) {
	return f.find(func(u types.User) bool { return u.Email == identifier || u.Username == identifier })
}

func (f *fakeRepo) Create(_ context.Context, user types.User) (types.User, error) {
	user.ID = primitive.NewObjectID()
	f.users = append(f.users, user)
	return user, nil
}

func (f *fakeRepo) ResetCredentials(_ context.Context, id primitive.ObjectID, passwordHash, code string, expiry time.Time) error {
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].PasswordHash = passwordHash
			f.users[i].VerifyCode = code
			f.users[i].VerifyCodeExpiry = expiry
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeRepo) MarkVerified(_ context.Context, id primitive.ObjectID) error {
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].IsVerified = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeRepo) SetAcceptingMessages(_ context.Context, id primitive.ObjectID, accepting bool) (types.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].IsAcceptingMessages = accepting
			return f.users[i], nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeRepo) AppendMessage(_ context.Context, username string, msg types.Message) error {
	for i := range f.users {
		if f.users[i].Username == username {
			if !f.users[i].IsAcceptingMessages {
				return store.ErrNotAccepting
			}
			f.users[i].Messages = append(f.users[i].Messages, msg)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeRepo) ListMessages(_ context.Context, id primitive.ObjectID) ([]types.Message, error) {
	user, err := f.GetByID(context.Background(), id)
	if err != nil {
		return nil, err
	}
	out := append([]types.Message(nil), user.Messages...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) DeleteMessage(_ context.Context, id primitive.ObjectID, messageID primitive.ObjectID) error {
	for i := range f.users {
		if f.users[i].ID != id {
			continue
		}
		for j, msg := range f.users[i].Messages {
			if msg.ID == messageID {
				f.users[i].Messages = append(f.users[i].Messages[:j], f.users[i].Messages[j+1:]...)
				return nil
			}
		}
	}
	return store.ErrNotFound
}

// nextMailErr pops a queued sender error, nil when the queue is empty.
func (f *fakeRepo) nextMailErr() error {
	if len(f.mailErrs) == 0 {
		return nil
	}
	err := f.mailErrs[0]
	f.mailErrs = f.mailErrs[1:]
	return err
}

type repoMailSender struct {
	repo *fakeRepo
}

func (s repoMailSender) SendVerification(_ context.Context, _, _, _ string) error {
	return s.repo.nextMailErr()
}

func newTestRouter(repo *fakeRepo) *chi.Mux {
	userService := services.NewUserService(repo, repoMailSender{repo: repo})
	messageService := services.NewMessageService(repo)

	router := chi.NewRouter()
	AuthRouter(router, userService, testSecret)
	MessageRouter(router, messageService, RequireAuth(testSecret))
	return router
}

func doRequest(t *testing.T, router *chi.Mux, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func loginToken(t *testing.T, user types.User) string {
	t.Helper()
	token, err := issueToken(user, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return token
}

func (f *fakeRepo) seedVerifiedUser(t *testing.T, username string, accepting bool) types.User {
	t.Helper()
	user := types.User{
		ID:                  primitive.NewObjectID(),
		Username:            username,
		Email:               username + "@x.com",
		IsVerified:          true,
		IsAcceptingMessages: accepting,
		Messages:            []types.Message{},
	}
	f.users = append(f.users, user)
	return user
}
