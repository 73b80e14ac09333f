package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

// PostgresRepo implements Repo on PostgreSQL using a pgx pool.
type PostgresRepo struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

var _ Repo = (*PostgresRepo)(nil)

// PostgresOptions tunes the pgx pool and connection retries.
type PostgresOptions struct {
	MaxConns      int32
	MinConns      int32
	RetryAttempts int
	RetryInterval time.Duration
}

// OpenPostgres connects with retries, applies goose migrations and returns a repository.
func OpenPostgres(ctx context.Context, connString string, opts PostgresOptions, log *zap.Logger) (*PostgresRepo, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}

	var pool *pgxpool.Pool
	for i := range opts.RetryAttempts {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
			pool = nil
		}
		log.Warn("postgres not ready", zap.Int("attempt", i+1), zap.Error(err))
		if i+1 == opts.RetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(i+1) * opts.RetryInterval):
		}
	}
	if pool == nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := migratePostgres(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresRepo{pool: pool, log: log}, nil
}

// migratePostgres bridges the pool to database/sql for goose.
func migratePostgres(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("close migration db", zap.Error(err))
		}
	}()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{log: log.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("postgres: migrations: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations/postgres"); err != nil {
		return fmt.Errorf("postgres: migrations: %w", err)
	}
	return nil
}

// gooseLogger routes goose's Printf-style output through zap.
type gooseLogger struct{ log *zap.SugaredLogger }

func (l gooseLogger) Fatalf(format string, v ...any) { l.log.Errorf(format, v...) }
func (l gooseLogger) Printf(format string, v ...any) { l.log.Infof(format, v...) }

func (r *PostgresRepo) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepo) InsertBlock(ctx context.Context, b *domain.TimeBlock) error {
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

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO time_blocks (`+blockColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		b.ID, b.OwnerContact, b.StartAt.UTC(), nullTime(b.EndAt), b.ReminderSent, created, updated,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *PostgresRepo) GetBlock(ctx context.Context, id string) (*domain.TimeBlock, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+blockColumns+` FROM time_blocks WHERE id = $1`, id)
	b, err := scanPostgresBlock(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get block: %w", err)
	}
	return &b, nil
}

func (r *PostgresRepo) FindDueCandidates(ctx context.Context, from, to time.Time) ([]domain.TimeBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+`
		FROM time_blocks
		WHERE reminder_sent = FALSE
		  AND start_at >= $1
		  AND start_at <= $2
		ORDER BY start_at ASC`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: find due: %w", err)
	}
	defer rows.Close()

	var res []domain.TimeBlock
	for rows.Next() {
		b, err := scanPostgresBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan due: %w", err)
		}
		res = append(res, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: find due: %w", err)
	}
	return res, nil
}

// TryClaim is a single conditional UPDATE; the row lock taken by the update
// makes concurrent claimers re-check the predicate after the winner commits.
func (r *PostgresRepo) TryClaim(ctx context.Context, id string) (domain.TimeBlock, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE time_blocks
		SET reminder_sent = TRUE, updated_at = NOW()
		WHERE id = $1 AND reminder_sent = FALSE
		RETURNING `+blockColumns,
		id,
	)
	b, err := scanPostgresBlock(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TimeBlock{}, false, nil
	}
	if err != nil {
		return domain.TimeBlock{}, false, fmt.Errorf("postgres: try claim: %w", err)
	}
	return b, true, nil
}

func (r *PostgresRepo) Unclaim(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE time_blocks SET reminder_sent = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: unclaim: %w", err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func scanPostgresBlock(row pgx.Row) (domain.TimeBlock, error) {
	var (
		b     domain.TimeBlock
		endAt *time.Time
	)
	if err := row.Scan(&b.ID, &b.OwnerContact, &b.StartAt, &endAt, &b.ReminderSent, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return domain.TimeBlock{}, err
	}
	b.StartAt = b.StartAt.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	if endAt != nil {
		b.EndAt = endAt.UTC()
	}
	return b, nil
}
