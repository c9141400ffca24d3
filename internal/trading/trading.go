package trading

import (
	"context"

	"paperfolio/internal/models"
	"paperfolio/internal/quote"

	"github.com/shopspring/decimal"
)

// Store is the slice of the database the executor needs. ExecuteBuy and
// ExecuteSell perform the balance/holding check and the ledger append
// as one serialized unit per user; the executor never re-implements
// those checks outside that boundary.
type Store interface {
	ExecuteBuy(ctx context.Context, userID int, symbol string, shares int64, price decimal.Decimal) (*models.Transaction, error)
	ExecuteSell(ctx context.Context, userID int, symbol string, shares int64, price decimal.Decimal) (*models.Transaction, error)
}

// Executor validates and records buy and sell operations.
type Executor struct {
	store  Store
	quotes quote.Provider
}

// NewExecutor creates a new trade executor
func NewExecutor(store Store, quotes quote.Provider) *Executor {
	return &Executor{store: store, quotes: quotes}
}

// Buy purchases shares of symbol at the current quoted price, debiting
// cash and appending a positive-shares transaction.
func (e *Executor) Buy(ctx context.Context, userID int, symbol string, shares int64) (*models.Transaction, error) {
	q, err := e.resolve(ctx, symbol, shares)
	if err != nil {
		return nil, err
	}
	return e.store.ExecuteBuy(ctx, userID, q.Symbol, shares, q.Price)
}

// Sell disposes of shares of symbol at the current quoted price,
// crediting cash and appending a negative-shares transaction. The
// holding sufficiency check happens inside the store's transaction.
func (e *Executor) Sell(ctx context.Context, userID int, symbol string, shares int64) (*models.Transaction, error) {
	q, err := e.resolve(ctx, symbol, shares)
	if err != nil {
		return nil, err
	}
	return e.store.ExecuteSell(ctx, userID, q.Symbol, shares, q.Price)
}

func (e *Executor) resolve(ctx context.Context, symbol string, shares int64) (*models.Quote, error) {
	symbol = quote.Normalize(symbol)
	if symbol == "" {
		return nil, models.ErrMissingSymbol
	}
	if shares <= 0 {
		return nil, models.ErrInvalidShares
	}

	q, err := e.quotes.Lookup(ctx, symbol)
	if err != nil {
		// Lookup failures are deliberately not distinguished from
		// unknown symbols.
		return nil, models.ErrUnknownSymbol
	}
	return q, nil
}
