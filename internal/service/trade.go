package service

import (
	"context"
	"log/slog"

	"github.com/efreitasn/finance/internal/domain"
	"github.com/efreitasn/finance/internal/engine"
	"github.com/efreitasn/finance/internal/quote"
	"github.com/efreitasn/finance/internal/store"
)

// TradeResult is the account state after a settled buy or sell.
type TradeResult struct {
	Cash     int64
	Position *domain.Position // nil when the position was sold out
	Entry    *domain.HistoryEntry
}

// TradeService executes buys, sells and deposits against the account store.
type TradeService struct {
	store  store.Store
	quotes quote.Provider
	engine *engine.Engine
	logger *slog.Logger
}

// NewTradeService creates a new TradeService.
func NewTradeService(st store.Store, quotes quote.Provider, eng *engine.Engine, logger *slog.Logger) *TradeService {
	return &TradeService{
		store:  st,
		quotes: quotes,
		engine: eng,
		logger: logger,
	}
}

// Buy purchases shares of symbol at the current quote.
func (s *TradeService) Buy(ctx context.Context, userID, symbol string, shares int64) (*TradeResult, error) {
	return s.trade(ctx, userID, symbol, shares, domain.TradeBuy)
}

// Sell sells shares of symbol at the current quote.
func (s *TradeService) Sell(ctx context.Context, userID, symbol string, shares int64) (*TradeResult, error) {
	return s.trade(ctx, userID, symbol, shares, domain.TradeSell)
}

func (s *TradeService) trade(ctx context.Context, userID, symbol string, shares int64, typ domain.TradeType) (*TradeResult, error) {
	sym, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if shares <= 0 {
		return nil, &domain.ValidationError{Message: "shares must be a positive integer"}
	}

	// Quote lookup happens before the account is locked.
	q, err := s.quotes.Lookup(ctx, sym)
	if err != nil {
		if typ == domain.TradeSell && !s.holds(ctx, userID, sym) {
			return nil, domain.ErrInsufficientShares
		}
		return nil, err
	}

	var result *TradeResult
	err = s.store.WithAccount(ctx, userID, func(ctx context.Context, tx store.AccountTx) error {
		user, err := tx.User(ctx)
		if err != nil {
			return err
		}
		pos, err := tx.Position(ctx, q.Symbol)
		if err != nil {
			return err
		}

		var st *engine.Settlement
		if typ == domain.TradeBuy {
			st, err = s.engine.Buy(user, pos, q, shares)
		} else {
			st, err = s.engine.Sell(user, pos, q, shares)
		}
		if err != nil {
			return err
		}
		if err := applySettlement(ctx, tx, st); err != nil {
			return err
		}

		result = &TradeResult{Cash: st.Cash, Position: st.Position, Entry: st.Entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trade settled",
		slog.String("user_id", userID),
		slog.String("type", string(typ)),
		slog.String("symbol", q.Symbol),
		slog.Int64("shares", shares),
		slog.Int64("price_cents", q.Price),
	)
	return result, nil
}

// Deposit credits amount cents to the user's cash and returns the new balance.
func (s *TradeService) Deposit(ctx context.Context, userID string, amount int64) (int64, error) {
	var cash int64
	err := s.store.WithAccount(ctx, userID, func(ctx context.Context, tx store.AccountTx) error {
		user, err := tx.User(ctx)
		if err != nil {
			return err
		}
		st, err := s.engine.Deposit(user, amount)
		if err != nil {
			return err
		}
		if err := applySettlement(ctx, tx, st); err != nil {
			return err
		}
		cash = st.Cash
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("deposit settled",
		slog.String("user_id", userID),
		slog.Int64("amount_cents", amount),
	)
	return cash, nil
}

// holds reports whether the user has a position in symbol. Store errors
// count as held so the caller's original error is returned.
func (s *TradeService) holds(ctx context.Context, userID, symbol string) bool {
	positions, err := s.store.ListPositions(ctx, userID)
	if err != nil {
		return true
	}
	for _, p := range positions {
		if p.Symbol == symbol {
			return true
		}
	}
	return false
}

func applySettlement(ctx context.Context, tx store.AccountTx, st *engine.Settlement) error {
	if err := tx.SetCash(ctx, st.Cash); err != nil {
		return err
	}
	if st.DeleteSymbol != "" {
		if err := tx.DeletePosition(ctx, st.DeleteSymbol); err != nil {
			return err
		}
	}
	if st.Position != nil {
		if err := tx.PutPosition(ctx, st.Position); err != nil {
			return err
		}
	}
	if st.Entry != nil {
		if err := tx.AppendHistory(ctx, st.Entry); err != nil {
			return err
		}
	}
	return nil
}
