package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/mrz1836/postmark"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

// PostmarkConfig holds the Postmark credentials and sender identity.
type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	SenderEmail  string
	SupportEmail string
}

// Postmark delivers reminders as transactional e-mail.
type Postmark struct {
	client   *postmark.Client
	cfg      PostmarkConfig
	renderer *Renderer
}

var _ Notifier = (*Postmark)(nil)

// NewPostmark validates cfg and returns a Postmark-backed notifier.
func NewPostmark(cfg PostmarkConfig, renderer *Renderer) (*Postmark, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: POSTMARK_SERVER_TOKEN is required", ErrInvalidConfig)
	}
	if _, err := mail.ParseAddress(cfg.SenderEmail); err != nil {
		return nil, fmt.Errorf("%w: SENDER_EMAIL must be a valid email address", ErrInvalidConfig)
	}
	if cfg.SupportEmail != "" {
		if _, err := mail.ParseAddress(cfg.SupportEmail); err != nil {
			return nil, fmt.Errorf("%w: SUPPORT_EMAIL must be a valid email address", ErrInvalidConfig)
		}
	}
	return &Postmark{
		client:   postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		cfg:      cfg,
		renderer: renderer,
	}, nil
}

// Send renders the reminder and submits it to Postmark. A non-zero Postmark
// error code counts as a failure.
func (p *Postmark) Send(ctx context.Context, recipient string, b domain.TimeBlock) error {
	if _, err := mail.ParseAddress(recipient); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, recipient)
	}
	msg, err := p.renderer.Render(b)
	if err != nil {
		return err
	}

	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     p.cfg.SenderEmail,
		ReplyTo:  p.cfg.SupportEmail,
		To:       recipient,
		Subject:  msg.Subject,
		Tag:      "quiet-hour-reminder",
		HTMLBody: msg.HTML,
		TextBody: msg.Text,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
