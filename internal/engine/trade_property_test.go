package engine

import (
	"errors"
	"testing"

	"github.com/efreitasn/finance/internal/domain"
	"pgregory.net/rapid"
)

// A successful buy debits exactly price*shares and records the purchase.
func TestProperty_BuyConservesValue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		price := rapid.Int64Range(1, 100_000_00).Draw(t, "price")
		shares := rapid.Int64Range(1, 1000).Draw(t, "shares")
		cash := rapid.Int64Range(0, 1_000_000_00).Draw(t, "cash")
		exact := rapid.Bool().Draw(t, "exact")

		e := newTestEngine(Rules{AllowExactCost: exact})
		s, err := e.Buy(newUser(cash), nil, quote("TEST", price), shares)

		cost := price * shares
		affordable := cash > cost || (exact && cash == cost)
		if !affordable {
			if !errors.Is(err, domain.ErrInsufficientFunds) {
				t.Fatalf("cash=%d cost=%d: expected ErrInsufficientFunds, got %v", cash, cost, err)
			}
			return
		}
		if err != nil {
			t.Fatalf("cash=%d cost=%d: unexpected error %v", cash, cost, err)
		}
		if s.Cash != cash-cost {
			t.Fatalf("Cash = %d, want %d", s.Cash, cash-cost)
		}
		if s.Cash < 0 {
			t.Fatalf("cash went negative: %d", s.Cash)
		}
		if s.Position.Total != cost || s.Position.Shares != shares {
			t.Fatalf("position = %+v, want %d shares total %d", s.Position, shares, cost)
		}
	})
}

// Any sequence of buys and sells keeps cash non-negative and positions
// strictly positive. Every accepted trade yields one history entry.
func TestProperty_TradeSequenceInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := newTestEngine(Rules{})
		user := newUser(rapid.Int64Range(0, 10_000_00).Draw(t, "cash"))
		var pos *domain.Position
		entries := 0

		steps := rapid.IntRange(1, 50).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			q := quote("TEST", rapid.Int64Range(1, 500_00).Draw(t, "price"))
			shares := rapid.Int64Range(-2, 20).Draw(t, "shares")

			var (
				s   *Settlement
				err error
			)
			if rapid.Bool().Draw(t, "buy") {
				s, err = e.Buy(user, pos, q, shares)
			} else {
				s, err = e.Sell(user, pos, q, shares)
			}
			if err != nil {
				if s != nil {
					t.Fatalf("settlement returned alongside error %v", err)
				}
				continue
			}

			user.Cash = s.Cash
			if s.DeleteSymbol != "" {
				pos = nil
			}
			if s.Position != nil {
				pos = s.Position
			}
			if s.Entry == nil {
				t.Fatalf("step %d: accepted trade produced no history entry", i)
			}
			entries++

			if user.Cash < 0 {
				t.Fatalf("step %d: cash went negative: %d", i, user.Cash)
			}
			if pos != nil && pos.Shares <= 0 {
				t.Fatalf("step %d: position with %d shares must not exist", i, pos.Shares)
			}
		}
		if entries > steps {
			t.Fatalf("%d history entries for %d steps", entries, steps)
		}
	})
}

// Selling everything that was bought always removes the position.
func TestProperty_SellAllDeletesPosition(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := newTestEngine(Rules{})
		price := rapid.Int64Range(1, 1000_00).Draw(t, "price")
		shares := rapid.Int64Range(1, 500).Draw(t, "shares")

		bought, err := e.Buy(newUser(price*shares+1), nil, quote("TEST", price), shares)
		if err != nil {
			t.Fatalf("buy failed: %v", err)
		}

		sellPrice := rapid.Int64Range(1, 1000_00).Draw(t, "sellPrice")
		sold, err := e.Sell(&domain.User{ID: "u1", Cash: bought.Cash}, bought.Position, quote("TEST", sellPrice), shares)
		if err != nil {
			t.Fatalf("sell failed: %v", err)
		}
		if sold.DeleteSymbol != "TEST" || sold.Position != nil {
			t.Fatalf("expected TEST to be deleted, got %+v", sold)
		}
		if sold.Cash != bought.Cash+sellPrice*shares {
			t.Fatalf("Cash = %d, want %d", sold.Cash, bought.Cash+sellPrice*shares)
		}
	})
}
