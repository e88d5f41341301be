package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/efreitasn/finance/internal/domain"
	"github.com/efreitasn/finance/internal/store/migrations"
)

const (
	insertUserQuery = `INSERT INTO users (id, username, hash, cash, created_at) VALUES (?, ?, ?, ?, ?)`
	selectUserQuery = `SELECT id, username, hash, cash, created_at FROM users`

	selectPositionQuery = `SELECT user_id, symbol, name, shares, price, total, updated_at FROM positions`
	upsertPositionQuery = `INSERT INTO positions (user_id, symbol, name, shares, price, total, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, symbol) DO UPDATE SET
name = excluded.name, shares = excluded.shares, price = excluded.price,
total = excluded.total, updated_at = excluded.updated_at`
	deletePositionQuery = `DELETE FROM positions WHERE user_id = ? AND symbol = ?`

	selectHistoryQuery = `SELECT id, user_id, symbol, shares, price, type, executed_at FROM history
WHERE user_id = ? ORDER BY seq`

	nextHistorySeqQuery = `SELECT COALESCE(MAX(seq), 0) + 1 FROM history WHERE user_id = ?`
	insertHistoryQuery  = `INSERT INTO history (id, user_id, seq, symbol, shares, price, type, executed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	updateCashQuery = `UPDATE users SET cash = ? WHERE id = ?`
)

// SQLStore is a Store backed by database/sql. It supports the "sqlite"
// driver (modernc.org/sqlite) and the "pgx" driver (PostgreSQL).
// Timestamps are stored as Unix microseconds.
type SQLStore struct {
	db       *sql.DB
	postgres bool
}

// NewSQLStore wraps an open database. driver selects the SQL dialect.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, postgres: driver == "pgx"}
}

// OpenSQL opens dsn with driver, runs migrations and returns the store.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if driver == "sqlite" {
		// sqlite allows a single writer; an in-memory database also
		// exists only on the connection that created it.
		db.SetMaxOpenConns(1)
	}

	s := NewSQLStore(db, driver)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

// Migrate applies the embedded goose migrations.
func (s *SQLStore) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	dialect := "sqlite3"
	if s.postgres {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

func (s *SQLStore) q(query string) string {
	if s.postgres {
		return rebind(query)
	}
	return query
}

func (s *SQLStore) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx, s.q(insertUserQuery),
		u.ID, u.Username, u.PasswordHash, u.Cash, u.CreatedAt.UnixMicro())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, s.q(selectUserQuery+` WHERE id = ?`), id))
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, s.q(selectUserQuery+` WHERE username = ?`), username))
}

func (s *SQLStore) ListPositions(ctx context.Context, userID string) ([]*domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, s.q(selectPositionQuery+` WHERE user_id = ? ORDER BY symbol`), userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Position, 0)
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (s *SQLStore) ListHistory(ctx context.Context, userID string) ([]*domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.q(selectHistoryQuery), userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.HistoryEntry, 0)
	for rows.Next() {
		var (
			e   domain.HistoryEntry
			typ string
			at  int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Symbol, &e.Shares, &e.Price, &typ, &at); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		e.Type = domain.TradeType(typ)
		e.ExecutedAt = time.UnixMicro(at).UTC()
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// WithAccount runs fn inside a database transaction. On postgres the user
// row is locked FOR UPDATE when fn first reads it.
func (s *SQLStore) WithAccount(ctx context.Context, userID string, fn func(ctx context.Context, tx AccountTx) error) error {
	return withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		return fn(ctx, &sqlTx{store: s, tx: tx, userID: userID})
	})
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	store  *SQLStore
	tx     DBTX
	userID string
}

func (t *sqlTx) User(ctx context.Context) (*domain.User, error) {
	query := selectUserQuery + ` WHERE id = ?`
	if t.store.postgres {
		query += ` FOR UPDATE`
	}
	return scanUser(t.tx.QueryRowContext(ctx, t.store.q(query), t.userID))
}

func (t *sqlTx) Position(ctx context.Context, symbol string) (*domain.Position, error) {
	row := t.tx.QueryRowContext(ctx, t.store.q(selectPositionQuery+` WHERE user_id = ? AND symbol = ?`), t.userID, symbol)
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (t *sqlTx) SetCash(ctx context.Context, cents int64) error {
	res, err := t.tx.ExecContext(ctx, t.store.q(updateCashQuery), cents, t.userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (t *sqlTx) PutPosition(ctx context.Context, p *domain.Position) error {
	_, err := t.tx.ExecContext(ctx, t.store.q(upsertPositionQuery),
		t.userID, p.Symbol, p.Name, p.Shares, p.Price, p.Total, p.UpdatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (t *sqlTx) DeletePosition(ctx context.Context, symbol string) error {
	if _, err := t.tx.ExecContext(ctx, t.store.q(deletePositionQuery), t.userID, symbol); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// AppendHistory numbers entries per user so ListHistory returns them in
// insertion order even when timestamps collide.
func (t *sqlTx) AppendHistory(ctx context.Context, e *domain.HistoryEntry) error {
	var seq int64
	if err := t.tx.QueryRowContext(ctx, t.store.q(nextHistorySeqQuery), t.userID).Scan(&seq); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	_, err := t.tx.ExecContext(ctx, t.store.q(insertHistoryQuery),
		e.ID, t.userID, seq, e.Symbol, e.Shares, e.Price, string(e.Type), e.ExecutedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		u  domain.User
		at int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Cash, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.CreatedAt = time.UnixMicro(at).UTC()
	return &u, nil
}

// scanPosition passes sql.ErrNoRows through unwrapped so callers can
// distinguish an absent position.
func scanPosition(row scanner) (*domain.Position, error) {
	var (
		p  domain.Position
		at int64
	)
	if err := row.Scan(&p.UserID, &p.Symbol, &p.Name, &p.Shares, &p.Price, &p.Total, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	p.UpdatedAt = time.UnixMicro(at).UTC()
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
