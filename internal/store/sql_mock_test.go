package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efreitasn/finance/internal/domain"
)

func newPostgresWithMock(t *testing.T) (*SQLStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewSQLStore(db, "pgx"), mock, db
}

func TestRebind(t *testing.T) {
	got := rebind(`UPDATE users SET cash = ? WHERE id = ?`)
	assert.Equal(t, `UPDATE users SET cash = $1 WHERE id = $2`, got)
	assert.Equal(t, `SELECT 1`, rebind(`SELECT 1`))
}

func TestSQLStore_PostgresLocksUserRow(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)^SELECT id, username, hash, cash, created_at FROM users WHERE id = \$1 FOR UPDATE$`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "hash", "cash", "created_at"}).
			AddRow("u-1", "alice", "hash", int64(500), int64(0)))
	mock.ExpectExec(`^UPDATE users SET cash = \$1 WHERE id = \$2$`).
		WithArgs(int64(600), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithAccount(context.Background(), "u-1", func(ctx context.Context, tx AccountTx) error {
		u, err := tx.User(ctx)
		if err != nil {
			return err
		}
		return tx.SetCash(ctx, u.Cash+100)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_RollbackOnWriteError(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`^UPDATE users SET cash`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`^SELECT COALESCE\(MAX\(seq\), 0\) \+ 1 FROM history WHERE user_id = \$1$`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(1))
	mock.ExpectExec(`^INSERT INTO history`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.WithAccount(context.Background(), "u-1", func(ctx context.Context, tx AccountTx) error {
		if err := tx.SetCash(ctx, 10); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, &domain.HistoryEntry{ID: "h-1", Symbol: "AAPL", Shares: 1, Price: 1, Type: domain.TradeBuy})
	})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*disk full`), err.Error())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_AppendHistoryNumbersEntries(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`^SELECT COALESCE\(MAX\(seq\), 0\) \+ 1 FROM history`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(7))
	mock.ExpectExec(`^INSERT INTO history \(id, user_id, seq, `).
		WithArgs("h-7", "u-1", int64(7), "AAPL", int64(2), int64(15000), "buy", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithAccount(context.Background(), "u-1", func(ctx context.Context, tx AccountTx) error {
		return tx.AppendHistory(ctx, &domain.HistoryEntry{ID: "h-7", Symbol: "AAPL", Shares: 2, Price: 15000, Type: domain.TradeBuy})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CommitError(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE FROM positions WHERE user_id = \$1 AND symbol = \$2$`).
		WithArgs("u-1", "AAPL").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := s.WithAccount(context.Background(), "u-1", func(ctx context.Context, tx AccountTx) error {
		return tx.DeletePosition(ctx, "AAPL")
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SetCashUnknownUser(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`^UPDATE users SET cash`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.WithAccount(context.Background(), "ghost", func(ctx context.Context, tx AccountTx) error {
		return tx.SetCash(ctx, 10)
	})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PanicRollsBack(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = s.WithAccount(context.Background(), "u-1", func(ctx context.Context, tx AccountTx) error {
			panic("boom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_GetUserDBError(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT id, username, hash, cash, created_at FROM users WHERE username = \$1$`).
		WithArgs("alice").
		WillReturnError(errors.New("db down"))

	_, err := s.GetUserByUsername(context.Background(), "alice")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrUserNotFound))
	assert.Regexp(t, `db error: .*db down`, err.Error())
}
