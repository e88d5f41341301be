package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/finance/internal/domain"
)

// DefaultURL is an IEX Cloud style quote endpoint.
const DefaultURL = "https://cloud.iexapis.com/stable/stock/{symbol}/quote?token={token}"

// HTTPConfig describes a JSON quote endpoint. URL may contain the
// placeholders {symbol} and {token}. The *Path fields are JSONPath
// expressions evaluated against the response body.
type HTTPConfig struct {
	URL        string
	APIKey     string
	NamePath   string
	PricePath  string
	SymbolPath string
	Timeout    time.Duration
}

// HTTPProvider fetches quotes from a JSON HTTP API.
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPProvider creates an HTTPProvider. Empty paths fall back to the
// IEX field names.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.NamePath == "" {
		cfg.NamePath = "$.companyName"
	}
	if cfg.PricePath == "" {
		cfg.PricePath = "$.latestPrice"
	}
	if cfg.SymbolPath == "" {
		cfg.SymbolPath = "$.symbol"
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Lookup fetches and parses the quote for symbol. Every failure, including
// transport errors, is reported as domain.ErrUnknownSymbol.
func (p *HTTPProvider) Lookup(ctx context.Context, symbol string) (*domain.Quote, error) {
	addr := strings.NewReplacer(
		"{symbol}", url.PathEscape(symbol),
		"{token}", url.QueryEscape(p.cfg.APIKey),
	).Replace(p.cfg.URL)

	var jobj any
	if err := p.get(ctx, addr, &jobj); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnknownSymbol, symbol, err)
	}

	q, err := p.parse(jobj)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnknownSymbol, symbol, err)
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	return q, nil
}

func (p *HTTPProvider) get(ctx context.Context, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(data)
}

func (p *HTTPProvider) parse(jobj any) (*domain.Quote, error) {
	raw, err := lookupPath(p.cfg.PricePath, jobj)
	if err != nil {
		return nil, err
	}
	price, err := toDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("price at %q: %w", p.cfg.PricePath, err)
	}
	cents, err := domain.RoundToCents(price)
	if err != nil {
		return nil, fmt.Errorf("price at %q: %w", p.cfg.PricePath, err)
	}
	if cents <= 0 {
		return nil, fmt.Errorf("price at %q must be positive, got %s", p.cfg.PricePath, price)
	}

	q := &domain.Quote{Price: cents}
	if name, err := lookupPath(p.cfg.NamePath, jobj); err == nil {
		q.Name = fmt.Sprint(name)
	}
	if sym, err := lookupPath(p.cfg.SymbolPath, jobj); err == nil {
		q.Symbol = strings.ToUpper(fmt.Sprint(sym))
	}
	return q, nil
}

// lookupPath evaluates a JSONPath expression, unwrapping single-element
// results since jsonpath may return either a value or a list of one.
func lookupPath(path string, jobj any) (any, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return nil, fmt.Errorf("error parsing %q: %w", path, err)
	}
	if jlist, ok := jval.([]any); ok {
		if len(jlist) == 0 {
			return nil, fmt.Errorf("no value at %q", path)
		}
		jval = jlist[0]
	}
	if jval == nil {
		return nil, fmt.Errorf("null value at %q", path)
	}
	return jval, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(x))
	case float64:
		return decimal.NewFromFloat(x), nil
	}
	return decimal.Decimal{}, fmt.Errorf("not a number: %v", v)
}
