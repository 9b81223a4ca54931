// Package mail delivers verification emails. The Sender interface keeps the
// provider swappable; SMTP is the production backend and a log-only sender
// covers local development without credentials.
package mail

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
)

// Sender dispatches a verification code to a registrant.
type Sender interface {
	SendVerification(ctx context.Context, email, username, code string) error
}

func verificationSubject() string {
	return "Whisperbox verification code"
}

func verificationBody(username, code, baseURL string) string {
	return fmt.Sprintf(
		"Hello %s,\n\nYour verification code is: %s\n\nEnter it at %s/verify/%s within one hour. If you did not sign up, ignore this email.\n",
		username, code, baseURL, url.PathEscape(username),
	)
}

// LogSender writes the verification code to the log instead of sending mail.
// Used when SMTP is not configured.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerification(ctx context.Context, email, username, code string) error {
	s.logger.Info().
		Str("email", email).
		Str("username", username).
		Str("code", code).
		Msg("verification email (log-only sender)")
	return nil
}
