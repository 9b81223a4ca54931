package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whisperbox/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

func TestSignUpValidation(t *testing.T) {
	router := newTestRouter(&fakeRepo{})

	cases := []struct {
		name string
		body SignUpRequest
	}{
		{"short username", SignUpRequest{Username: "a", Email: "a@x.com", Password: "Secret123!"}},
		{"forbidden characters", SignUpRequest{Username: "al ice!", Email: "a@x.com", Password: "Secret123!"}},
		{"bad email", SignUpRequest{Username: "alice", Email: "not-an-email", Password: "Secret123!"}},
		{"weak password", SignUpRequest{Username: "alice", Email: "a@x.com", Password: "123"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/sign-up", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, decodeBody[Envelope](t, rec).Success)
		})
	}
}

func TestSignUpSuccess(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(repo)

	rec := doRequest(t, router, http.MethodPost, "/sign-up", "", SignUpRequest{
		Username: "alice", Email: "alice@x.com", Password: "Secret123!",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody[Envelope](t, rec)
	assert.True(t, body.Success)
	require.Len(t, repo.users, 1)
	assert.False(t, repo.users[0].IsVerified)
}

func TestSignUpMailFailureReturns500ButPersists(t *testing.T) {
	repo := &fakeRepo{mailErrs: []error{errors.New("smtp down")}}
	router := newTestRouter(repo)

	rec := doRequest(t, router, http.MethodPost, "/sign-up", "", SignUpRequest{
		Username: "alice", Email: "alice@x.com", Password: "Secret123!",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, repo.users, 1)
}

func TestSignUpTakenUsername(t *testing.T) {
	repo := &fakeRepo{}
	repo.seedVerifiedUser(t, "alice", true)
	router := newTestRouter(repo)

	rec := doRequest(t, router, http.MethodPost, "/sign-up", "", SignUpRequest{
		Username: "alice", Email: "new@x.com", Password: "Secret123!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username is already taken", decodeBody[Envelope](t, rec).Message)
}

func TestVerifyCodeFlow(t *testing.T) {
	repo := &fakeRepo{users: []types.User{{
		ID:               primitive.NewObjectID(),
		Username:         "alice",
		Email:            "alice@x.com",
		VerifyCode:       "123456",
		VerifyCodeExpiry: time.Now().Add(time.Hour),
	}}}
	router := newTestRouter(repo)

	t.Run("malformed code", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/verify-code", "", VerifyCodeRequest{Username: "alice", Code: "12ab56"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/verify-code", "", VerifyCodeRequest{Username: "ghost", Code: "123456"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong code", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/verify-code", "", VerifyCodeRequest{Username: "alice", Code: "000000"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid code", decodeBody[Envelope](t, rec).Message)
	})

	t.Run("expired code", func(t *testing.T) {
		repo.users[0].VerifyCodeExpiry = time.Now().Add(-time.Minute)
		rec := doRequest(t, router, http.MethodPost, "/verify-code", "", VerifyCodeRequest{Username: "alice", Code: "123456"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Code is expired", decodeBody[Envelope](t, rec).Message)
	})

	t.Run("success", func(t *testing.T) {
		repo.users[0].VerifyCodeExpiry = time.Now().Add(time.Hour)
		rec := doRequest(t, router, http.MethodPost, "/verify-code", "", VerifyCodeRequest{Username: "alice", Code: "123456"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, repo.users[0].IsVerified)
	})

	t.Run("url-encoded username", func(t *testing.T) {
		repo.users = append(repo.users, types.User{
			ID:               primitive.NewObjectID(),
			Username:         "bob_2",
			Email:            "bob@x.com",
			VerifyCode:       "654321",
			VerifyCodeExpiry: time.Now().Add(time.Hour),
		})
		rec := doRequest(t, router, http.MethodPost, "/verify-code", "", VerifyCodeRequest{Username: "bob%5F2", Code: "654321"})
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCheckUsernameUnique(t *testing.T) {
	repo := &fakeRepo{}
	repo.seedVerifiedUser(t, "taken", true)
	repo.users = append(repo.users, types.User{
		ID:       primitive.NewObjectID(),
		Username: "pending",
		Email:    "pending@x.com",
	})
	router := newTestRouter(repo)

	t.Run("invalid format is a validation failure", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/check-username-unique?username=a%20b", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("verified holder blocks", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/check-username-unique?username=taken", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unverified holder does not block", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/check-username-unique?username=pending", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decodeBody[Envelope](t, rec).Success)
	})
}

func TestLogin(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("Secret123!"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &fakeRepo{users: []types.User{
		{
			ID:                  primitive.NewObjectID(),
			Username:            "alice",
			Email:               "alice@x.com",
			PasswordHash:        string(hashed),
			IsVerified:          true,
			IsAcceptingMessages: true,
		},
		{
			ID:           primitive.NewObjectID(),
			Username:     "bob",
			Email:        "bob@x.com",
			PasswordHash: string(hashed),
			IsVerified:   false,
		},
	}}
	router := newTestRouter(repo)

	t.Run("unknown identifier", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/login", "", LoginRequest{Identifier: "ghost", Password: "Secret123!"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unverified", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/login", "", LoginRequest{Identifier: "bob", Password: "Secret123!"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/login", "", LoginRequest{Identifier: "alice", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("success issues session token", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/login", "", LoginRequest{Identifier: "alice@x.com", Password: "Secret123!"})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody[LoginResponse](t, rec)
		assert.True(t, body.Success)
		assert.Equal(t, "alice", body.User.Username)
		require.NotEmpty(t, body.Token)

		identity, err := parseToken(body.Token, []byte(testSecret))
		require.NoError(t, err)
		assert.Equal(t, repo.users[0].ID, identity.ID)
		assert.Equal(t, "alice", identity.Username)
		assert.True(t, identity.IsVerified)
		assert.True(t, identity.IsAcceptingMessages)
	})

	t.Run("password never serialized", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/login", "", LoginRequest{Identifier: "alice", Password: "Secret123!"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "passwordHash")
		assert.NotContains(t, rec.Body.String(), string(hashed))
	})
}

func TestRequireAuth(t *testing.T) {
	repo := &fakeRepo{}
	user := repo.seedVerifiedUser(t, "alice", true)
	router := newTestRouter(repo)

	t.Run("missing token", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/get-messages", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/get-messages", "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token signed with wrong secret", func(t *testing.T) {
		token, err := issueToken(user, []byte("other-secret"), time.Hour)
		require.NoError(t, err)
		rec := doRequest(t, router, http.MethodGet, "/get-messages", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/get-messages", loginToken(t, user), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
