package engine

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/finance/internal/domain"
)

// Rules tunes the affordability check applied to purchases.
type Rules struct {
	// AllowExactCost lets a buy go through when cash equals the cost.
	// When false a purchase requires strictly more cash than it costs.
	AllowExactCost bool
}

// Settlement is the set of account effects produced by one transition.
// The caller must apply all of them or none.
type Settlement struct {
	Cash int64

	// Position is upserted when non-nil.
	Position *domain.Position

	// DeleteSymbol names a position to remove when non-empty.
	DeleteSymbol string

	// Entry is appended to the user's history when non-nil.
	Entry *domain.HistoryEntry
}

// Engine computes Buy, Sell and Deposit transitions. It holds no account
// state and performs no I/O; persistence is the caller's job.
type Engine struct {
	rules Rules
	now   func() time.Time
}

// New creates an Engine with the given rules.
func New(rules Rules) *Engine {
	return &Engine{
		rules: rules,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Buy settles the purchase of shares at the quoted price.
// pos is the user's current position in the symbol, or nil.
func (e *Engine) Buy(user *domain.User, pos *domain.Position, q *domain.Quote, shares int64) (*Settlement, error) {
	if shares <= 0 {
		return nil, &domain.ValidationError{Message: "shares must be a positive integer"}
	}

	cost, ok := mulCents(q.Price, shares)
	if !ok {
		return nil, &domain.ValidationError{Message: "order value is too large"}
	}

	if !e.canAfford(user.Cash, cost) {
		return nil, domain.ErrInsufficientFunds
	}

	now := e.now()
	next := &domain.Position{
		UserID:    user.ID,
		Symbol:    q.Symbol,
		Name:      q.Name,
		Shares:    shares,
		Price:     q.Price,
		Total:     cost,
		UpdatedAt: now,
	}
	if pos != nil {
		if pos.Shares > math.MaxInt64-shares || pos.Total > math.MaxInt64-cost {
			return nil, &domain.ValidationError{Message: "order value is too large"}
		}
		next.Shares = pos.Shares + shares
		next.Total = pos.Total + cost
	}

	return &Settlement{
		Cash:     user.Cash - cost,
		Position: next,
		Entry:    e.entry(user.ID, q, shares, domain.TradeBuy, now),
	}, nil
}

// Sell settles the sale of shares at the quoted price. Selling the whole
// position deletes it; cash is credited and history appended either way.
func (e *Engine) Sell(user *domain.User, pos *domain.Position, q *domain.Quote, shares int64) (*Settlement, error) {
	if shares <= 0 {
		return nil, &domain.ValidationError{Message: "shares must be a positive integer"}
	}
	if pos == nil || shares > pos.Shares {
		return nil, domain.ErrInsufficientShares
	}

	proceeds, ok := mulCents(q.Price, shares)
	if !ok || user.Cash > math.MaxInt64-proceeds {
		return nil, &domain.ValidationError{Message: "order value is too large"}
	}

	now := e.now()
	s := &Settlement{
		Cash:  user.Cash + proceeds,
		Entry: e.entry(user.ID, q, shares, domain.TradeSell, now),
	}

	if shares == pos.Shares {
		s.DeleteSymbol = pos.Symbol
		return s, nil
	}

	s.Position = &domain.Position{
		UserID:    pos.UserID,
		Symbol:    pos.Symbol,
		Name:      pos.Name,
		Shares:    pos.Shares - shares,
		Price:     pos.Price,
		Total:     pos.Total - proceeds,
		UpdatedAt: now,
	}
	return s, nil
}

// Deposit credits amount cents to the user's cash.
func (e *Engine) Deposit(user *domain.User, amount int64) (*Settlement, error) {
	if amount <= 0 {
		return nil, &domain.ValidationError{Message: "amount must be greater than zero"}
	}
	if user.Cash > math.MaxInt64-amount {
		return nil, &domain.ValidationError{Message: "amount is too large"}
	}
	return &Settlement{Cash: user.Cash + amount}, nil
}

func (e *Engine) canAfford(cash, cost int64) bool {
	if e.rules.AllowExactCost {
		return cash >= cost
	}
	return cash > cost
}

func (e *Engine) entry(userID string, q *domain.Quote, shares int64, typ domain.TradeType, at time.Time) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:         uuid.New().String(),
		UserID:     userID,
		Symbol:     q.Symbol,
		Shares:     shares,
		Price:      q.Price,
		Type:       typ,
		ExecutedAt: at,
	}
}

// NetWorth is cash plus the sum of position totals.
func NetWorth(cash int64, positions []*domain.Position) int64 {
	total := cash
	for _, p := range positions {
		total += p.Total
	}
	return total
}

// mulCents multiplies a price by a share count, reporting overflow.
func mulCents(price, shares int64) (int64, bool) {
	if price < 0 || shares < 0 {
		return 0, false
	}
	if price != 0 && shares > math.MaxInt64/price {
		return 0, false
	}
	return price * shares, true
}
