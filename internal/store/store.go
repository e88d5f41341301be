// Package store persists accounts, positions and trade history.
//
// Every mutation goes through Store.WithAccount, which hands the callback an
// AccountTx scoped to one user. Writes made through the AccountTx become
// visible only if the callback returns nil; otherwise none of them do.
package store

import (
	"context"
	"fmt"

	"github.com/efreitasn/finance/internal/domain"
)

// Store is the account store used by the services.
type Store interface {
	// CreateUser inserts a new user. It returns domain.ErrUsernameTaken
	// when the username is already registered.
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	// ListPositions returns the user's positions ordered by symbol.
	ListPositions(ctx context.Context, userID string) ([]*domain.Position, error)
	// ListHistory returns the user's history, oldest first.
	ListHistory(ctx context.Context, userID string) ([]*domain.HistoryEntry, error)

	// WithAccount runs fn as a single atomic unit against one user's account.
	// Concurrent calls for the same user are serialised.
	WithAccount(ctx context.Context, userID string, fn func(ctx context.Context, tx AccountTx) error) error

	Close() error
}

// AccountTx is the transactional view of one user's account.
type AccountTx interface {
	User(ctx context.Context) (*domain.User, error)
	// Position returns nil, nil when the user holds no shares of symbol.
	Position(ctx context.Context, symbol string) (*domain.Position, error)
	SetCash(ctx context.Context, cents int64) error
	PutPosition(ctx context.Context, p *domain.Position) error
	DeletePosition(ctx context.Context, symbol string) error
	AppendHistory(ctx context.Context, e *domain.HistoryEntry) error
}

// Open returns a Store for the given driver: "memory", "sqlite" or "pgx".
// SQL stores are migrated before being returned.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "pgx":
		return OpenSQL(ctx, driver, dsn)
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}
