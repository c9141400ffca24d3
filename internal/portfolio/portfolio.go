package portfolio

import (
	"context"
	"fmt"

	"paperfolio/internal/models"
	"paperfolio/internal/quote"

	"github.com/shopspring/decimal"
)

// Store is the read-only slice of the database the calculator needs.
type Store interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetHoldings(ctx context.Context, userID int) ([]models.Holding, error)
}

// Calculator derives a user's current positions and valuation from the
// transaction ledger and live quotes. Pure read; no side effects.
type Calculator struct {
	store  Store
	quotes quote.Provider
}

// NewCalculator creates a new portfolio calculator
func NewCalculator(store Store, quotes quote.Provider) *Calculator {
	return &Calculator{store: store, quotes: quotes}
}

// Summary values every held symbol at its live price. A held symbol
// whose quote cannot be resolved is skipped and reported as a warning
// instead of failing the whole view.
func (c *Calculator) Summary(ctx context.Context, userID int) (*models.PortfolioSummary, error) {
	user, err := c.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	holdings, err := c.store.GetHoldings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	summary := &models.PortfolioSummary{
		Positions:      []models.Position{},
		Cash:           user.Cash,
		PortfolioValue: decimal.Zero,
	}

	for _, h := range holdings {
		q, err := c.quotes.Lookup(ctx, h.Symbol)
		if err != nil {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("no quote for %s", h.Symbol))
			continue
		}
		value := q.Price.Mul(decimal.NewFromInt(h.Shares))
		summary.Positions = append(summary.Positions, models.Position{
			Symbol: q.Symbol,
			Name:   q.Name,
			Shares: h.Shares,
			Price:  q.Price,
			Value:  value,
		})
		summary.PortfolioValue = summary.PortfolioValue.Add(value)
	}

	summary.TotalBalance = summary.Cash.Add(summary.PortfolioValue)
	return summary, nil
}
