package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered account. Cash is mutated only by the
// trade executor.
type User struct {
	ID           int
	Username     string
	PasswordHash string
	Cash         decimal.Decimal
	CreatedAt    time.Time
}

// Transaction is one row of the append-only ledger. Shares are signed:
// positive for a buy, negative for a sell. Price is the quoted price
// snapshotted at execution time.
type Transaction struct {
	ID           int             `json:"id"`
	UserID       int             `json:"user_id"`
	Symbol       string          `json:"symbol"`
	Shares       int64           `json:"shares"`
	Price        decimal.Decimal `json:"price"`
	TransectedAt time.Time       `json:"transected_at"`
}

// Holding is the derived net share count for one user/symbol, computed
// by summing the ledger. Never stored.
type Holding struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
}

// Quote is a point-in-time price and display name for a ticker symbol.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// Position is one valued row of the portfolio view.
type Position struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Value  decimal.Decimal `json:"value"`
}

// PortfolioSummary is the full portfolio view: every position valued at
// its live price, plus cash and totals. Warnings list held symbols that
// could not be quoted and were left out of the valuation.
type PortfolioSummary struct {
	Positions      []Position      `json:"positions"`
	Cash           decimal.Decimal `json:"cash"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	TotalBalance   decimal.Decimal `json:"total_balance"`
	Warnings       []string        `json:"warnings,omitempty"`
}

// Domain errors shared by the store, the services and the API layer.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrWeakPassword         = errors.New("password must be at least 5 characters and contain a letter, a digit and a symbol")
	ErrMissingSymbol        = errors.New("symbol is required")
	ErrInvalidShares        = errors.New("shares must be a positive integer")
	ErrUnknownSymbol        = errors.New("symbol not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)
