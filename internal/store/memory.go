package store

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/efreitasn/finance/internal/domain"
)

// account holds one user's state. mu serialises WithAccount calls and
// guards every field below it.
type account struct {
	mu        sync.Mutex
	user      domain.User
	positions *btree.BTreeG[*domain.Position]
	history   []*domain.HistoryEntry
}

func positionLess(a, b *domain.Position) bool {
	return a.Symbol < b.Symbol
}

// MemoryStore is a thread-safe in-memory Store. Users are keyed by ID
// with a secondary username index; positions are kept ordered by symbol.
type MemoryStore struct {
	mu         sync.RWMutex
	accounts   map[string]*account
	byUsername map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:   make(map[string]*account),
		byUsername: make(map[string]string),
	}
}

// CreateUser stores a copy of u.
func (s *MemoryStore) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[u.Username]; taken {
		return domain.ErrUsernameTaken
	}
	s.accounts[u.ID] = &account{
		user:      *u,
		positions: btree.NewG(16, positionLess),
	}
	s.byUsername[u.Username] = u.ID
	return nil
}

func (s *MemoryStore) account(id string) (*account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return a, nil
}

// GetUser returns a snapshot of the user.
func (s *MemoryStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	a, err := s.account(id)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	u := a.user
	return &u, nil
}

// GetUserByUsername returns a snapshot of the user with the given username.
func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	id, ok := s.byUsername[username]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *MemoryStore) ListPositions(_ context.Context, userID string) ([]*domain.Position, error) {
	a, err := s.account(userID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*domain.Position, 0, a.positions.Len())
	a.positions.Ascend(func(p *domain.Position) bool {
		cp := *p
		out = append(out, &cp)
		return true
	})
	return out, nil
}

func (s *MemoryStore) ListHistory(_ context.Context, userID string) ([]*domain.HistoryEntry, error) {
	a, err := s.account(userID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*domain.HistoryEntry, len(a.history))
	for i, e := range a.history {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

// WithAccount holds the user's lock for the duration of fn. Changes are
// staged on a memoryTx and applied only when fn succeeds.
func (s *MemoryStore) WithAccount(ctx context.Context, userID string, fn func(ctx context.Context, tx AccountTx) error) error {
	a, err := s.account(userID)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	tx := &memoryTx{
		acct:    a,
		puts:    make(map[string]*domain.Position),
		deletes: make(map[string]bool),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// memoryTx stages writes against an account whose lock is held by the caller.
type memoryTx struct {
	acct    *account
	cash    *int64
	puts    map[string]*domain.Position
	deletes map[string]bool
	entries []*domain.HistoryEntry
}

func (t *memoryTx) User(_ context.Context) (*domain.User, error) {
	u := t.acct.user
	if t.cash != nil {
		u.Cash = *t.cash
	}
	return &u, nil
}

func (t *memoryTx) Position(_ context.Context, symbol string) (*domain.Position, error) {
	if p, ok := t.puts[symbol]; ok {
		cp := *p
		return &cp, nil
	}
	if t.deletes[symbol] {
		return nil, nil
	}
	p, ok := t.acct.positions.Get(&domain.Position{Symbol: symbol})
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (t *memoryTx) SetCash(_ context.Context, cents int64) error {
	t.cash = &cents
	return nil
}

func (t *memoryTx) PutPosition(_ context.Context, p *domain.Position) error {
	cp := *p
	cp.UserID = t.acct.user.ID
	t.puts[p.Symbol] = &cp
	delete(t.deletes, p.Symbol)
	return nil
}

func (t *memoryTx) DeletePosition(_ context.Context, symbol string) error {
	delete(t.puts, symbol)
	t.deletes[symbol] = true
	return nil
}

func (t *memoryTx) AppendHistory(_ context.Context, e *domain.HistoryEntry) error {
	cp := *e
	cp.UserID = t.acct.user.ID
	t.entries = append(t.entries, &cp)
	return nil
}

func (t *memoryTx) apply() {
	if t.cash != nil {
		t.acct.user.Cash = *t.cash
	}
	for symbol := range t.deletes {
		t.acct.positions.Delete(&domain.Position{Symbol: symbol})
	}
	for _, p := range t.puts {
		t.acct.positions.ReplaceOrInsert(p)
	}
	t.acct.history = append(t.acct.history, t.entries...)
}
