package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimeBlock is a scheduled quiet-hour interval owned by a user.
type TimeBlock struct {
	ID           string
	OwnerContact string    // e-mail address or chat id, depending on transport
	StartAt      time.Time // UTC
	EndAt        time.Time // UTC, zero if unknown
	ReminderSent bool
	CreatedAt    time.Time // UTC
	UpdatedAt    time.Time // UTC
}

// NewTimeBlock builds a pending block with a fresh id.
func NewTimeBlock(contact string, start, end time.Time) TimeBlock {
	now := time.Now().UTC()
	return TimeBlock{
		ID:           uuid.NewString(),
		OwnerContact: contact,
		StartAt:      start.UTC(),
		EndAt:        end.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// LeadTime is the duration between now and the block start.
func (b TimeBlock) LeadTime(now time.Time) time.Duration {
	return b.StartAt.Sub(now)
}
