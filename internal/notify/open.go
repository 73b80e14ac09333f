package notify

import (
	"fmt"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/config"
)

// New returns the Notifier selected by cfg.Notifier.
func New(cfg config.Config) (Notifier, error) {
	renderer, err := NewRenderer(cfg.DisplayTZ, cfg.ReminderLead)
	if err != nil {
		return nil, err
	}
	switch cfg.Notifier {
	case "file":
		return NewFileOutbox(cfg.OutboxDir, renderer), nil
	case "postmark":
		p, err := NewPostmark(PostmarkConfig{
			ServerToken:  cfg.PostmarkServerToken,
			AccountToken: cfg.PostmarkAccountToken,
			SenderEmail:  cfg.SenderEmail,
			SupportEmail: cfg.SupportEmail,
		}, renderer)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "telegram":
		t, err := NewTelegram(cfg.BotToken, renderer)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: unknown notifier %q", ErrInvalidConfig, cfg.Notifier)
	}
}
