package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/ports"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// maxInParams caps IN lists so large snapshots stay under driver parameter limits.
	maxInParams = 500
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the statements shared by the repository and its transactions.
type queries struct {
	q   querier
	sb  sq.StatementBuilderType
	now func() time.Time
}

// Repository persists recalls, alerts and pipeline runs in Postgres or SQLite.
type Repository struct {
	queries
	db     *sql.DB
	driver string
}

var (
	_ ports.Store           = (*Repository)(nil)
	_ ports.RunRepository   = (*Repository)(nil)
	_ ports.AlertRepository = (*Repository)(nil)
	_ ports.RecallReader    = (*Repository)(nil)
	_ ports.CommitScope     = (*txScope)(nil)
)

// Open connects to the configured database and verifies it answers.
func Open(ctx context.Context, driver, dsn string) (*Repository, error) {
	var sqlDriver string
	switch driver {
	case DriverPostgres:
		sqlDriver = "pgx"
	case DriverSQLite:
		sqlDriver = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	repo, err := New(db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := repo.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// New wires an already opened sql.DB.
func New(db *sql.DB, driver string) (*Repository, error) {
	var placeholder sq.PlaceholderFormat
	switch driver {
	case DriverPostgres:
		placeholder = sq.Dollar
	case DriverSQLite:
		placeholder = sq.Question
		// One connection keeps SQLite writers from tripping over each other.
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return &Repository{
		queries: queries{
			q:   db,
			sb:  sq.StatementBuilder.PlaceholderFormat(placeholder),
			now: func() time.Time { return time.Now() },
		},
		db:     db,
		driver: driver,
	}, nil
}

// WithClock overrides the timestamp source, mainly for tests.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// Driver names the dialect in use.
func (r *Repository) Driver() string {
	return r.driver
}

// Close releases the connection pool.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w: %w", r.driver, domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Commit runs fn inside one transaction. Any error from fn rolls back
// every write made through the scope.
func (r *Repository) Commit(ctx context.Context, fn func(ctx context.Context, scope ports.CommitScope) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w: %w", domain.ErrStoreUnavailable, err)
	}

	scope := &txScope{queries: queries{q: tx, sb: r.sb, now: r.now}}
	if err := fn(ctx, scope); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// txScope is the transactional view handed to Commit callbacks.
type txScope struct {
	queries
	savepoints int
}

// UpsertRecall writes rec under a savepoint so a failed statement leaves the
// transaction usable. A uniqueness race is retried once.
func (s *txScope) UpsertRecall(ctx context.Context, rec domain.RecallRecord) (domain.UpsertResult, error) {
	for attempt := 0; ; attempt++ {
		s.savepoints++
		name := fmt.Sprintf("upsert_%d", s.savepoints)

		if _, err := s.q.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
			return domain.UpsertResult{}, classify("savepoint", err)
		}

		res, err := s.upsertRecall(ctx, rec)
		if err == nil {
			if _, err := s.q.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
				return domain.UpsertResult{}, classify("release savepoint", err)
			}
			return res, nil
		}

		if _, rbErr := s.q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return domain.UpsertResult{}, classify("rollback savepoint", rbErr)
		}
		if errors.Is(err, domain.ErrConstraintViolation) && attempt == 0 {
			continue
		}
		return domain.UpsertResult{}, err
	}
}

// classify maps driver errors onto the domain error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrConstraintViolation) || errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}

	if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConstraintViolation, err)
	}
	if liteErr := new(sqlite.Error); errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrConstraintViolation, err)
		}
	}

	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// stamp normalizes timestamps so they round-trip identically through both drivers.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

type scanner interface {
	Scan(dest ...any) error
}
