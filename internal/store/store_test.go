package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efreitasn/finance/internal/domain"
)

// storeFactories lists every Store implementation exercised by the shared tests.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store {
			s, err := OpenSQL(context.Background(), "sqlite", ":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func newTestUser(username string, cash int64) *domain.User {
	return &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: "hash",
		Cash:         cash,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, factory())
		})
	}
}

func TestStore_CreateAndGetUser(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		u := newTestUser("alice", 1_000_000)
		require.NoError(t, s.CreateUser(ctx, u))

		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Username, got.Username)
		assert.Equal(t, int64(1_000_000), got.Cash)
		assert.True(t, u.CreatedAt.Equal(got.CreatedAt))

		byName, err := s.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byName.ID)
		assert.Equal(t, "hash", byName.PasswordHash)

		_, err = s.GetUser(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		_, err = s.GetUserByUsername(ctx, "bob")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestStore_DuplicateUsername(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CreateUser(ctx, newTestUser("alice", 0)))
		err := s.CreateUser(ctx, newTestUser("alice", 0))
		assert.ErrorIs(t, err, domain.ErrUsernameTaken)
	})
}

func TestStore_WithAccountCommits(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		u := newTestUser("alice", 1_000_000)
		require.NoError(t, s.CreateUser(ctx, u))

		now := time.Now().UTC().Truncate(time.Microsecond)
		err := s.WithAccount(ctx, u.ID, func(ctx context.Context, tx AccountTx) error {
			cur, err := tx.User(ctx)
			if err != nil {
				return err
			}
			if err := tx.SetCash(ctx, cur.Cash-150_000); err != nil {
				return err
			}
			if err := tx.PutPosition(ctx, &domain.Position{
				Symbol: "AAPL", Name: "Apple Inc", Shares: 10, Price: 15000, Total: 150_000, UpdatedAt: now,
			}); err != nil {
				return err
			}

			// Reads inside the unit observe its own writes.
			p, err := tx.Position(ctx, "AAPL")
			if err != nil {
				return err
			}
			if p == nil || p.Shares != 10 {
				return fmt.Errorf("expected staged position, got %+v", p)
			}
			return tx.AppendHistory(ctx, &domain.HistoryEntry{
				ID: uuid.New().String(), Symbol: "AAPL", Shares: 10, Price: 15000, Type: domain.TradeBuy, ExecutedAt: now,
			})
		})
		require.NoError(t, err)

		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(850_000), got.Cash)

		positions, err := s.ListPositions(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.Equal(t, "AAPL", positions[0].Symbol)
		assert.Equal(t, u.ID, positions[0].UserID)
		assert.Equal(t, int64(150_000), positions[0].Total)

		history, err := s.ListHistory(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, domain.TradeBuy, history[0].Type)
		assert.Equal(t, u.ID, history[0].UserID)
		assert.True(t, now.Equal(history[0].ExecutedAt))
	})
}

func TestStore_WithAccountRollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		u := newTestUser("alice", 1_000_000)
		require.NoError(t, s.CreateUser(ctx, u))

		boom := errors.New("boom")
		err := s.WithAccount(ctx, u.ID, func(ctx context.Context, tx AccountTx) error {
			if err := tx.SetCash(ctx, 1); err != nil {
				return err
			}
			if err := tx.PutPosition(ctx, &domain.Position{Symbol: "AAPL", Shares: 1, Price: 1, Total: 1}); err != nil {
				return err
			}
			if err := tx.AppendHistory(ctx, &domain.HistoryEntry{
				ID: uuid.New().String(), Symbol: "AAPL", Shares: 1, Price: 1, Type: domain.TradeBuy,
			}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), got.Cash, "cash must be untouched after rollback")

		positions, err := s.ListPositions(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, positions)

		history, err := s.ListHistory(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestStore_DeletePosition(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		u := newTestUser("alice", 0)
		require.NoError(t, s.CreateUser(ctx, u))

		put := func(symbol string) {
			err := s.WithAccount(ctx, u.ID, func(ctx context.Context, tx AccountTx) error {
				return tx.PutPosition(ctx, &domain.Position{Symbol: symbol, Name: symbol, Shares: 1, Price: 100, Total: 100})
			})
			require.NoError(t, err)
		}
		put("MSFT")
		put("AAPL")

		err := s.WithAccount(ctx, u.ID, func(ctx context.Context, tx AccountTx) error {
			if err := tx.DeletePosition(ctx, "MSFT"); err != nil {
				return err
			}
			p, err := tx.Position(ctx, "MSFT")
			if err != nil {
				return err
			}
			if p != nil {
				return fmt.Errorf("deleted position still visible: %+v", p)
			}
			return nil
		})
		require.NoError(t, err)

		positions, err := s.ListPositions(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.Equal(t, "AAPL", positions[0].Symbol)
	})
}

func TestStore_OrderedReads(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		u := newTestUser("alice", 0)
		require.NoError(t, s.CreateUser(ctx, u))

		base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		symbols := []string{"TSLA", "AAPL", "NFLX", "GOOG"}
		for i, sym := range symbols {
			err := s.WithAccount(ctx, u.ID, func(ctx context.Context, tx AccountTx) error {
				if err := tx.PutPosition(ctx, &domain.Position{Symbol: sym, Name: sym, Shares: 1, Price: 1, Total: 1}); err != nil {
					return err
				}
				return tx.AppendHistory(ctx, &domain.HistoryEntry{
					ID: uuid.New().String(), Symbol: sym, Shares: 1, Price: 1, Type: domain.TradeBuy,
					ExecutedAt: base.Add(time.Duration(i) * time.Second),
				})
			})
			require.NoError(t, err)
		}

		positions, err := s.ListPositions(ctx, u.ID)
		require.NoError(t, err)
		got := make([]string, len(positions))
		for i, p := range positions {
			got[i] = p.Symbol
		}
		assert.Equal(t, []string{"AAPL", "GOOG", "NFLX", "TSLA"}, got)

		history, err := s.ListHistory(ctx, u.ID)
		require.NoError(t, err)
		got = got[:0]
		for _, e := range history {
			got = append(got, e.Symbol)
		}
		assert.Equal(t, symbols, got, "history must be chronological")
	})
}

func TestStore_HistoryKeepsInsertionOrderOnTimestampTies(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		u := newTestUser("alice", 0)
		require.NoError(t, s.CreateUser(ctx, u))

		at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		ids := []string{"h-9", "h-5", "h-7", "h-1"}
		for _, id := range ids {
			err := s.WithAccount(ctx, u.ID, func(ctx context.Context, tx AccountTx) error {
				return tx.AppendHistory(ctx, &domain.HistoryEntry{
					ID: id, Symbol: "AAPL", Shares: 1, Price: 1, Type: domain.TradeBuy, ExecutedAt: at,
				})
			})
			require.NoError(t, err)
		}

		history, err := s.ListHistory(ctx, u.ID)
		require.NoError(t, err)
		got := make([]string, len(history))
		for i, e := range history {
			got[i] = e.ID
		}
		assert.Equal(t, ids, got)
	})
}

func TestStore_ConcurrentAccountUpdates(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		u := newTestUser("alice", 0)
		require.NoError(t, s.CreateUser(ctx, u))

		const workers = 50
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.WithAccount(ctx, u.ID, func(ctx context.Context, tx AccountTx) error {
					cur, err := tx.User(ctx)
					if err != nil {
						return err
					}
					return tx.SetCash(ctx, cur.Cash+100)
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(workers*100), got.Cash, "no update may be lost")
	})
}

func TestStore_WithAccountUnknownUser(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		err := s.WithAccount(context.Background(), "missing", func(ctx context.Context, tx AccountTx) error {
			_, err := tx.User(ctx)
			return err
		})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "")
	assert.Error(t, err)
}
