package quote

import (
	"context"
	"fmt"
	"sync"

	"github.com/efreitasn/finance/internal/domain"
)

// StaticProvider serves quotes from a fixed, mutable table.
type StaticProvider struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

// NewStaticProvider creates a StaticProvider seeded with quotes.
func NewStaticProvider(quotes ...domain.Quote) *StaticProvider {
	p := &StaticProvider{quotes: make(map[string]domain.Quote, len(quotes))}
	for _, q := range quotes {
		p.quotes[q.Symbol] = q
	}
	return p
}

// DefaultQuotes is the table used when no market data source is configured.
func DefaultQuotes() []domain.Quote {
	return []domain.Quote{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: 18950},
		{Symbol: "AMZN", Name: "Amazon.com, Inc.", Price: 17825},
		{Symbol: "GOOG", Name: "Alphabet Inc.", Price: 14210},
		{Symbol: "MSFT", Name: "Microsoft Corporation", Price: 41530},
		{Symbol: "NFLX", Name: "Netflix, Inc.", Price: 62870},
		{Symbol: "TSLA", Name: "Tesla, Inc.", Price: 17440},
	}
}

// Set adds or replaces a quote.
func (p *StaticProvider) Set(q domain.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[q.Symbol] = q
}

func (p *StaticProvider) Lookup(_ context.Context, symbol string) (*domain.Quote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	q, ok := p.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}
	return &q, nil
}
