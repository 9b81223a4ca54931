package services

import "errors"

var (
	// ErrUsernameTaken means a verified account already holds the username.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrEmailTaken means a verified account already holds the email.
	ErrEmailTaken = errors.New("email already taken")

	// ErrMailDispatch means the verification email could not be sent. The
	// registered account is persisted regardless and can be reclaimed by
	// re-registering the same email.
	ErrMailDispatch = errors.New("verification email dispatch failed")

	// ErrCodeExpired means the submitted code matched but its expiry passed.
	ErrCodeExpired = errors.New("verification code expired")

	// ErrInvalidCode means the submitted code did not match the stored one.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrNotVerified means the account exists but has not completed
	// email verification.
	ErrNotVerified = errors.New("account not verified")

	// ErrBadCredentials means the password did not match.
	ErrBadCredentials = errors.New("bad credentials")
)
