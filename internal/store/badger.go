package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

var (
	badgerBlockPrefix   = []byte("block/")
	badgerPendingPrefix = []byte("pending/")
)

// BadgerRepo implements Repo on an embedded BadgerDB. Blocks are JSON values;
// a pending index keyed by start time serves the due-window scan. Badger
// transactions are optimistic, so a claim that loses a write race fails with
// ErrConflict and is re-evaluated against the committed state.
type BadgerRepo struct {
	db *badger.DB
}

var _ Repo = (*BadgerRepo)(nil)

type badgerBlock struct {
	ID           string    `json:"id"`
	OwnerContact string    `json:"owner_contact"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
	ReminderSent bool      `json:"reminder_sent"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OpenBadger opens the database in dir. An empty dir opens an in-memory instance.
func OpenBadger(dir string) (*BadgerRepo, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("badger: resolve path: %w", err)
		}
		opts = badger.DefaultOptions(absPath)
	}
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	return &BadgerRepo{db: db}, nil
}

func (r *BadgerRepo) Close() error { return r.db.Close() }

func (r *BadgerRepo) Ping(_ context.Context) error {
	if r.db.IsClosed() {
		return errors.New("badger: closed")
	}
	return nil
}

func badgerBlockKey(id string) []byte {
	return append(append([]byte{}, badgerBlockPrefix...), id...)
}

// badgerPendingKey orders keys by start time: big-endian millis with the sign
// bit flipped sort correctly as bytes.
func badgerPendingKey(start time.Time, id string) []byte {
	k := make([]byte, 0, len(badgerPendingPrefix)+8+1+len(id))
	k = append(k, badgerPendingPrefix...)
	k = binary.BigEndian.AppendUint64(k, uint64(toMillis(start))^(1<<63))
	k = append(k, '/')
	return append(k, id...)
}

func (r *BadgerRepo) InsertBlock(ctx context.Context, b *domain.TimeBlock) error {
	if b == nil {
		return ErrNilBlock
	}
	rec := badgerBlock{
		ID:           b.ID,
		OwnerContact: b.OwnerContact,
		StartAt:      b.StartAt.UTC(),
		EndAt:        b.EndAt.UTC(),
		ReminderSent: b.ReminderSent,
		CreatedAt:    b.CreatedAt.UTC(),
		UpdatedAt:    b.UpdatedAt.UTC(),
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("badger: marshal block: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("badger: insert block: %w", err)
		}
		err = r.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(badgerBlockKey(rec.ID))
			if err == nil {
				return ErrDuplicate
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(badgerBlockKey(rec.ID), data); err != nil {
				return err
			}
			if rec.ReminderSent {
				return nil
			}
			return txn.Set(badgerPendingKey(rec.StartAt, rec.ID), nil)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if errors.Is(err, ErrDuplicate) {
			return ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("badger: insert block: %w", err)
		}
		return nil
	}
}

func (r *BadgerRepo) GetBlock(_ context.Context, id string) (*domain.TimeBlock, error) {
	var rec badgerBlock
	err := r.db.View(func(txn *badger.Txn) error {
		return getBadgerBlock(txn, id, &rec)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger: get block: %w", err)
	}
	b := rec.toDomain()
	return &b, nil
}

func (r *BadgerRepo) FindDueCandidates(_ context.Context, from, to time.Time) ([]domain.TimeBlock, error) {
	var res []domain.TimeBlock
	upper := badgerPendingKey(to.Add(time.Millisecond), "")

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = badgerPendingPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var ids []string
		for it.Seek(badgerPendingKey(from, "")); it.ValidForPrefix(badgerPendingPrefix); it.Next() {
			key := it.Item().Key()
			if bytes.Compare(key, upper) >= 0 {
				break
			}
			ids = append(ids, string(key[len(badgerPendingPrefix)+9:]))
		}

		for _, id := range ids {
			var rec badgerBlock
			if err := getBadgerBlock(txn, id, &rec); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			// Index keys are derived from start; skip any that disagree with the record.
			if rec.ReminderSent || rec.StartAt.Before(from) || rec.StartAt.After(to) {
				continue
			}
			res = append(res, rec.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: find due: %w", err)
	}
	return res, nil
}

func (r *BadgerRepo) TryClaim(ctx context.Context, id string) (domain.TimeBlock, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.TimeBlock{}, false, fmt.Errorf("badger: try claim: %w", err)
		}
		var (
			rec     badgerBlock
			claimed bool
		)
		err := r.db.Update(func(txn *badger.Txn) error {
			if err := getBadgerBlock(txn, id, &rec); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return nil
				}
				return err
			}
			if rec.ReminderSent {
				return nil
			}
			rec.ReminderSent = true
			rec.UpdatedAt = time.Now().UTC()
			if err := putBadgerBlock(txn, &rec); err != nil {
				return err
			}
			claimed = true
			return txn.Delete(badgerPendingKey(rec.StartAt, rec.ID))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return domain.TimeBlock{}, false, fmt.Errorf("badger: try claim: %w", err)
		}
		if !claimed {
			return domain.TimeBlock{}, false, nil
		}
		return rec.toDomain(), true, nil
	}
}

func (r *BadgerRepo) Unclaim(ctx context.Context, id string) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("badger: unclaim: %w", err)
		}
		err := r.db.Update(func(txn *badger.Txn) error {
			var rec badgerBlock
			if err := getBadgerBlock(txn, id, &rec); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return nil
				}
				return err
			}
			rec.ReminderSent = false
			rec.UpdatedAt = time.Now().UTC()
			if err := putBadgerBlock(txn, &rec); err != nil {
				return err
			}
			return txn.Set(badgerPendingKey(rec.StartAt, rec.ID), nil)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("badger: unclaim: %w", err)
		}
		return nil
	}
}

func getBadgerBlock(txn *badger.Txn, id string, rec *badgerBlock) error {
	item, err := txn.Get(badgerBlockKey(id))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, rec)
	})
}

func putBadgerBlock(txn *badger.Txn, rec *badgerBlock) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(badgerBlockKey(rec.ID), data)
}

func (rec badgerBlock) toDomain() domain.TimeBlock {
	b := domain.TimeBlock{
		ID:           rec.ID,
		OwnerContact: rec.OwnerContact,
		StartAt:      rec.StartAt.UTC(),
		ReminderSent: rec.ReminderSent,
		CreatedAt:    rec.CreatedAt.UTC(),
		UpdatedAt:    rec.UpdatedAt.UTC(),
	}
	if !rec.EndAt.IsZero() {
		b.EndAt = rec.EndAt.UTC()
	}
	return b
}
