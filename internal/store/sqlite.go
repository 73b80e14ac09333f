package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

var _ Repo = (*SQLiteRepo)(nil)

const blockColumns = `id, owner_contact, start_at, end_at, reminder_sent, created_at, updated_at`

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single-writer engine: one connection also serializes the conditional
	// updates issued by parallel dispatch goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// Ping verifies the database is reachable.
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertBlock stores a new time block.
func (r *SQLiteRepo) InsertBlock(ctx context.Context, b *domain.TimeBlock) error {
	if b == nil {
		return ErrNilBlock
	}

	now := time.Now().UTC()
	created := b.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := b.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO time_blocks (`+blockColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		b.ID, b.OwnerContact, toMillis(b.StartAt), toNullMillis(b.EndAt),
		boolToInt(b.ReminderSent), toMillis(created), toMillis(updated),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert block: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: insert block: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

// GetBlock returns a block by id or ErrNotFound.
func (r *SQLiteRepo) GetBlock(ctx context.Context, id string) (*domain.TimeBlock, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+blockColumns+`
		FROM time_blocks
		WHERE id = ?`,
		id,
	)
	b, err := scanSQLiteBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get block: %w", err)
	}
	return &b, nil
}

// FindDueCandidates returns unreminded blocks whose start_at is within [from, to].
func (r *SQLiteRepo) FindDueCandidates(ctx context.Context, from, to time.Time) ([]domain.TimeBlock, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+blockColumns+`
		FROM time_blocks
		WHERE reminder_sent = 0
		  AND start_at >= ?
		  AND start_at <= ?
		ORDER BY start_at ASC`,
		toMillis(from), toMillis(to),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: find due: %w", err)
	}
	defer rows.Close()

	var res []domain.TimeBlock
	for rows.Next() {
		b, err := scanSQLiteBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan due: %w", err)
		}
		res = append(res, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: find due: %w", err)
	}
	return res, nil
}

// TryClaim flips reminder_sent to 1 only if it is still 0. The update and
// the precondition are a single statement.
func (r *SQLiteRepo) TryClaim(ctx context.Context, id string) (domain.TimeBlock, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE time_blocks
		SET reminder_sent = 1, updated_at = ?
		WHERE id = ? AND reminder_sent = 0
		RETURNING `+blockColumns,
		toMillis(time.Now()), id,
	)
	b, err := scanSQLiteBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TimeBlock{}, false, nil
	}
	if err != nil {
		return domain.TimeBlock{}, false, fmt.Errorf("sqlite: try claim: %w", err)
	}
	return b, true, nil
}

// Unclaim resets reminder_sent for a block.
func (r *SQLiteRepo) Unclaim(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE time_blocks
		SET reminder_sent = 0, updated_at = ?
		WHERE id = ?`,
		toMillis(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: unclaim: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteBlock(row rowScanner) (domain.TimeBlock, error) {
	var (
		id        string
		contact   string
		startAt   int64
		endAt     sql.NullInt64
		sentInt   int
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&id, &contact, &startAt, &endAt, &sentInt, &createdAt, &updatedAt); err != nil {
		return domain.TimeBlock{}, err
	}
	return domain.TimeBlock{
		ID:           id,
		OwnerContact: contact,
		StartAt:      fromMillis(startAt),
		EndAt:        fromNullMillis(endAt),
		ReminderSent: sentInt != 0,
		CreatedAt:    fromMillis(createdAt),
		UpdatedAt:    fromMillis(updatedAt),
	}, nil
}
