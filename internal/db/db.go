package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"paperfolio/internal/models"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed migrations/001_init.sql
var initSQL string

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool. The shopspring
// decimal codec is registered on every connection so NUMERIC columns
// scan directly into decimal.Decimal.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Migrate applies the embedded schema. All statements are idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, initSQL); err != nil {
		return fmt.Errorf("failed to apply migration: %w", err)
	}
	return nil
}

// Close closes the database connection pool
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

// CreateUser inserts a new user. The cash balance starts at the schema
// default. Returns models.ErrUsernameTaken if the username exists.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id, username, password_hash, cash, created_at",
		username, passwordHash).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Cash, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, models.ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by exact, case-sensitive username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, cash, created_at FROM users WHERE username = $1",
		username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Cash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by id
func (db *DB) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, cash, created_at FROM users WHERE id = $1",
		id).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Cash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetHoldings returns every symbol whose summed share count is positive
// for the user, ordered by symbol.
func (db *DB) GetHoldings(ctx context.Context, userID int) ([]models.Holding, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT symbol, SUM(shares) AS total_shares
		FROM transactions
		WHERE user_id = $1
		GROUP BY symbol
		HAVING SUM(shares) > 0
		ORDER BY symbol
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.Symbol, &h.Shares); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return holdings, nil
}

// GetUserTransactions retrieves the user's full transaction history,
// newest first.
func (db *DB) GetUserTransactions(ctx context.Context, userID int) ([]models.Transaction, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, symbol, shares, price, transected_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY transected_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var txn models.Transaction
		if err := rows.Scan(&txn.ID, &txn.UserID, &txn.Symbol, &txn.Shares, &txn.Price, &txn.TransectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txns, nil
}

// ExecuteBuy debits the cash balance and appends the buy row as a
// single database transaction. The user row is locked for the duration,
// so concurrent trades for the same user serialize and the funds check
// always sees the committed balance.
func (db *DB) ExecuteBuy(ctx context.Context, userID int, symbol string, shares int64, price decimal.Decimal) (*models.Transaction, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var cash decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT cash FROM users WHERE id = $1 FOR UPDATE",
		userID).Scan(&cash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get cash balance: %w", err)
	}

	cost := price.Mul(decimal.NewFromInt(shares))
	if cash.LessThan(cost) {
		return nil, models.ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx,
		"UPDATE users SET cash = cash - $1 WHERE id = $2",
		cost, userID); err != nil {
		return nil, fmt.Errorf("failed to debit cash: %w", err)
	}

	txn := &models.Transaction{}
	err = tx.QueryRow(ctx,
		"INSERT INTO transactions (user_id, symbol, shares, price) VALUES ($1, $2, $3, $4) RETURNING id, user_id, symbol, shares, price, transected_at",
		userID, symbol, shares, price).Scan(
		&txn.ID, &txn.UserID, &txn.Symbol, &txn.Shares, &txn.Price, &txn.TransectedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return txn, nil
}

// ExecuteSell credits the cash balance and appends a negative-shares
// row as a single database transaction. The holding is summed inside
// the transaction, after the user row lock is taken, so two concurrent
// sells cannot both pass the sufficiency check and drive the derived
// holding negative.
func (db *DB) ExecuteSell(ctx context.Context, userID int, symbol string, shares int64, price decimal.Decimal) (*models.Transaction, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var lockedID int
	err = tx.QueryRow(ctx,
		"SELECT id FROM users WHERE id = $1 FOR UPDATE",
		userID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user row: %w", err)
	}

	var held int64
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(shares), 0) FROM transactions WHERE user_id = $1 AND symbol = $2",
		userID, symbol).Scan(&held)
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	if held < shares {
		return nil, models.ErrInsufficientHoldings
	}

	proceeds := price.Mul(decimal.NewFromInt(shares))
	if _, err := tx.Exec(ctx,
		"UPDATE users SET cash = cash + $1 WHERE id = $2",
		proceeds, userID); err != nil {
		return nil, fmt.Errorf("failed to credit cash: %w", err)
	}

	txn := &models.Transaction{}
	err = tx.QueryRow(ctx,
		"INSERT INTO transactions (user_id, symbol, shares, price) VALUES ($1, $2, $3, $4) RETURNING id, user_id, symbol, shares, price, transected_at",
		userID, symbol, -shares, price).Scan(
		&txn.ID, &txn.UserID, &txn.Symbol, &txn.Shares, &txn.Price, &txn.TransectedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return txn, nil
}
