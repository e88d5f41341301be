// Package quote resolves ticker symbols to priced quotes.
package quote

import (
	"context"

	"github.com/efreitasn/finance/internal/domain"
)

// Provider looks up the current quote for a normalised symbol. An
// unresolvable symbol yields an error wrapping domain.ErrUnknownSymbol.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (*domain.Quote, error)
}
