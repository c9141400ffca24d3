package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paperfolio/internal/models"

	"github.com/shopspring/decimal"
)

// Provider resolves a ticker symbol to a current quote. Implementations
// return models.ErrUnknownSymbol when the symbol does not exist.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (*models.Quote, error)
}

// Normalize trims and upper-cases a symbol so holdings stay keyed
// consistently regardless of how the user typed it.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Client fetches quotes from a JSON endpoint of the form
// GET {base}/quote?symbol=SYM returning {"symbol", "name", "price"}.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a quote client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Lookup fetches the current quote for symbol.
func (c *Client) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = Normalize(symbol)
	if symbol == "" {
		return nil, models.ErrUnknownSymbol
	}

	endpoint := fmt.Sprintf("%s/quote?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, models.ErrUnknownSymbol
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		Symbol string          `json:"symbol"`
		Name   string          `json:"name"`
		Price  decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	if body.Symbol == "" {
		body.Symbol = symbol
	}
	if body.Price.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("quote for %s has no usable price", symbol)
	}

	return &models.Quote{
		Symbol: Normalize(body.Symbol),
		Name:   body.Name,
		Price:  body.Price,
	}, nil
}

// Static serves quotes from a fixed in-memory table. Used when no quote
// endpoint is configured, and by the seed command.
type Static struct {
	quotes map[string]models.Quote
}

// NewStatic creates a static provider from the given quotes.
func NewStatic(quotes ...models.Quote) *Static {
	table := make(map[string]models.Quote, len(quotes))
	for _, q := range quotes {
		q.Symbol = Normalize(q.Symbol)
		table[q.Symbol] = q
	}
	return &Static{quotes: table}
}

// DefaultStatic returns a provider with a handful of well-known symbols.
func DefaultStatic() *Static {
	return NewStatic(
		models.Quote{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.NewFromFloat(189.84)},
		models.Quote{Symbol: "MSFT", Name: "Microsoft Corporation", Price: decimal.NewFromFloat(423.65)},
		models.Quote{Symbol: "GOOG", Name: "Alphabet Inc.", Price: decimal.NewFromFloat(176.29)},
		models.Quote{Symbol: "AMZN", Name: "Amazon.com, Inc.", Price: decimal.NewFromFloat(182.41)},
		models.Quote{Symbol: "NFLX", Name: "Netflix, Inc.", Price: decimal.NewFromFloat(645.12)},
	)
}

// Lookup resolves symbol against the static table.
func (s *Static) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	q, ok := s.quotes[Normalize(symbol)]
	if !ok {
		return nil, models.ErrUnknownSymbol
	}
	return &q, nil
}
