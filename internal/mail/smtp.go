package mail

import (
	"context"
	"errors"
	"strings"

	gomail "github.com/wneessen/go-mail"
	"github.com/whisperbox/apiserver/config"
)

// SMTPSender delivers verification emails over SMTP.
type SMTPSender struct {
	client  *gomail.Client
	from    string
	baseURL string
}

// NewSMTPSender constructs an SMTP sender from config. baseURL is the public
// address embedded in the verification link.
func NewSMTPSender(cfg config.SMTPConfig, baseURL string) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("smtp from address is required")
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, err
	}

	return &SMTPSender{client: client, from: cfg.From, baseURL: baseURL}, nil
}

// SendVerification mails the code to the registrant and waits for the result.
func (s *SMTPSender) SendVerification(ctx context.Context, email, username, code string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return err
	}
	if err := msg.To(email); err != nil {
		return err
	}
	msg.Subject(verificationSubject())
	msg.SetBodyString(gomail.TypeTextPlain, verificationBody(username, code, s.baseURL))

	return s.client.DialAndSendWithContext(ctx, msg)
}
