package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/whisperbox/apiserver/internal/services"
	"github.com/whisperbox/apiserver/internal/store"
	"github.com/whisperbox/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultTokenTTL = 24 * time.Hour
const minPasswordLength = 6

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{2,20}$`)
var verifyCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// AuthHandler provides sign-up, verification, and login endpoints.
type AuthHandler struct {
	userService *services.UserService
	secret      []byte
	tokenTTL    time.Duration
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		secret:      []byte(jwtSecret),
		tokenTTL:    defaultTokenTTL,
	}
}

// AuthRouter registers the account lifecycle routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, jwtSecret string) {
	handler := NewAuthHandler(userService, jwtSecret)

	r.Post("/sign-up", handler.SignUp)
	r.Post("/verify-code", handler.VerifyCode)
	r.Get("/check-username-unique", handler.CheckUsernameUnique)
	r.Post("/login", handler.Login)
}

// RequireAuth constructs session middleware for other routers.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return requireAuth([]byte(jwtSecret))
}

func requireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			identity, err := parseToken(tokenString, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			ctx := context.WithValue(r.Context(), contextIdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SignUp registers a new account or refreshes an abandoned unverified one,
// then mails the verification code. The account persists even when the mail
// dispatch fails.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if !usernamePattern.MatchString(req.Username) {
		writeError(w, http.StatusBadRequest, "Username must be 2-20 characters, letters, digits, and underscores only")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	err := h.userService.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case err == nil:
		writeSuccess(w, http.StatusCreated, "User registered successfully. Please verify your email.")
	case errors.Is(err, services.ErrUsernameTaken):
		writeError(w, http.StatusBadRequest, "Username is already taken")
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "User already exists with this email")
	case errors.Is(err, services.ErrMailDispatch):
		writeError(w, http.StatusInternalServerError, "Failed to send verification email")
	default:
		writeError(w, http.StatusInternalServerError, "Error registering user")
	}
}

// VerifyCode activates the account when the submitted code matches and has
// not expired.
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !verifyCodePattern.MatchString(req.Code) {
		writeError(w, http.StatusBadRequest, "Verification code must be 6 digits")
		return
	}

	// The username arrives URL-encoded from the verification link.
	username, err := url.QueryUnescape(strings.TrimSpace(req.Username))
	if err != nil || username == "" {
		writeError(w, http.StatusBadRequest, "Invalid username")
		return
	}

	err = h.userService.Verify(r.Context(), username, req.Code)
	switch {
	case err == nil:
		writeSuccess(w, http.StatusOK, "User verified successfully")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrCodeExpired):
		writeError(w, http.StatusBadRequest, "Code is expired")
	case errors.Is(err, services.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "Invalid code")
	default:
		writeError(w, http.StatusInternalServerError, "Error verifying code")
	}
}

// CheckUsernameUnique reports whether a username is free to claim. Only
// verified holders block a candidate.
func (h *AuthHandler) CheckUsernameUnique(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if !usernamePattern.MatchString(username) {
		writeError(w, http.StatusBadRequest, "Username must be 2-20 characters, letters, digits, and underscores only")
		return
	}

	available, err := h.userService.IsUsernameAvailable(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error checking username")
		return
	}
	if !available {
		writeError(w, http.StatusBadRequest, "Username is already taken")
		return
	}
	writeSuccess(w, http.StatusOK, "Username is available")
}

// Login exchanges credentials for a session token. The token carries a
// snapshot of the user's flags taken now; it is not refreshed until the
// next login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing credentials")
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Identifier, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "No user found with this identifier")
		return
	case errors.Is(err, services.ErrNotVerified):
		writeError(w, http.StatusForbidden, "Please verify your account before logging in")
		return
	case errors.Is(err, services.ErrBadCredentials):
		writeError(w, http.StatusUnauthorized, "Incorrect password")
		return
	default:
		writeError(w, http.StatusInternalServerError, "Error during login")
		return
	}

	token, err := issueToken(user, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Envelope: Envelope{Success: true, Message: "Login successful"},
		Token:    token,
		User:     user,
	})
}

type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyCodeRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	Envelope
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type sessionClaims struct {
	Username            string `json:"username"`
	IsVerified          bool   `json:"isVerified"`
	IsAcceptingMessages bool   `json:"isAcceptingMessages"`
	jwt.RegisteredClaims
}

func issueToken(user types.User, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Username:            user.Username,
		IsVerified:          user.IsVerified,
		IsAcceptingMessages: user.IsAcceptingMessages,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseToken(tokenString string, secret []byte) (Identity, error) {
	claims := sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, errors.New("invalid token")
	}

	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(claims.Subject))
	if err != nil {
		return Identity{}, errors.New("invalid subject")
	}
	return Identity{
		ID:                  id,
		Username:            claims.Username,
		IsVerified:          claims.IsVerified,
		IsAcceptingMessages: claims.IsAcceptingMessages,
	}, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
