package store

import (
	"context"
	"errors"
	"time"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

var (
	ErrNotFound      = errors.New("time block not found")
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrNilBlock      = errors.New("nil time block")
	ErrDuplicate     = errors.New("time block already exists")
)

// Repo is the record store adapter for time blocks.
//
// TryClaim is the only concurrency boundary: it flips reminder_sent from
// false to true atomically with respect to every other writer of the flag.
type Repo interface {
	// FindDueCandidates returns unreminded blocks with start in [from, to],
	// ordered by start ascending.
	FindDueCandidates(ctx context.Context, from, to time.Time) ([]domain.TimeBlock, error)
	// TryClaim sets reminder_sent=true only if it is still false. ok is false
	// when the precondition failed or the block no longer exists.
	TryClaim(ctx context.Context, id string) (b domain.TimeBlock, ok bool, err error)
	// Unclaim resets reminder_sent=false unconditionally.
	Unclaim(ctx context.Context, id string) error

	// InsertBlock stores a new block; ErrDuplicate if the id is taken.
	InsertBlock(ctx context.Context, b *domain.TimeBlock) error
	GetBlock(ctx context.Context, id string) (*domain.TimeBlock, error)
	Ping(ctx context.Context) error
	Close() error
}
