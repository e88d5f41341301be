package service

import (
	"context"

	"github.com/efreitasn/finance/internal/domain"
	"github.com/efreitasn/finance/internal/engine"
	"github.com/efreitasn/finance/internal/quote"
	"github.com/efreitasn/finance/internal/store"
)

// PortfolioService serves read-only views of an account.
type PortfolioService struct {
	store  store.Store
	quotes quote.Provider
}

// NewPortfolioService creates a new PortfolioService.
func NewPortfolioService(st store.Store, quotes quote.Provider) *PortfolioService {
	return &PortfolioService{store: st, quotes: quotes}
}

// GetPortfolio returns cash, positions ordered by symbol, and net worth.
func (s *PortfolioService) GetPortfolio(ctx context.Context, userID string) (*domain.Portfolio, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	positions, err := s.store.ListPositions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.Portfolio{
		Cash:      user.Cash,
		Positions: positions,
		NetWorth:  engine.NetWorth(user.Cash, positions),
	}, nil
}

// GetHistory returns the user's trades, oldest first.
func (s *PortfolioService) GetHistory(ctx context.Context, userID string) ([]*domain.HistoryEntry, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, userID)
}

// GetQuote looks up the current quote for symbol.
func (s *PortfolioService) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return s.quotes.Lookup(ctx, sym)
}
