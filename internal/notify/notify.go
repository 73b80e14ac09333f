// Package notify renders and delivers the reminder for a claimed time block.
// Transports report failures and never retry; redelivery is the dispatcher's
// rollback path.
package notify

import (
	"context"
	"errors"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

var (
	ErrSendFailed     = errors.New("notify: send failed")
	ErrInvalidConfig  = errors.New("notify: invalid config")
	ErrInvalidAddress = errors.New("notify: invalid recipient")
)

// Notifier delivers a reminder for b to recipient.
type Notifier interface {
	Send(ctx context.Context, recipient string, b domain.TimeBlock) error
}

// Message is a rendered reminder.
type Message struct {
	Subject string
	HTML    string
	Text    string
}
