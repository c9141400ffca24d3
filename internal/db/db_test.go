package db

import (
	"context"
	"os"
	"sync"
	"testing"

	"paperfolio/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to the database named by TEST_DATABASE_URL,
// applies the schema and truncates. Skips when no database is
// configured so the rest of the suite runs standalone.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping database integration tests")
	}

	ctx := context.Background()
	database, err := NewDB(ctx, connString)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(ctx) })

	require.NoError(t, database.Migrate(ctx))
	_, err = database.Pool.Exec(ctx, "TRUNCATE TABLE users, transactions RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	return database
}

func TestCreateUser(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	user, err := database.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.Cash.Equal(decimal.NewFromInt(10000)), "new accounts start with 10000 cash, got %s", user.Cash)

	t.Run("Duplicate", func(t *testing.T) {
		_, err := database.CreateUser(ctx, "alice", "hash")
		assert.ErrorIs(t, err, models.ErrUsernameTaken)
	})

	t.Run("CaseSensitive", func(t *testing.T) {
		_, err := database.CreateUser(ctx, "Alice", "hash")
		assert.NoError(t, err, "differently-cased username is a distinct account")
	})
}

func TestGetUser(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	created, err := database.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)

	byName, err := database.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	byID, err := database.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = database.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	_, err = database.GetUserByID(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestExecuteBuyAndSell(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	user, err := database.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)

	// Buy 10 AAA at 50: cash 10000 -> 9500.
	txn, err := database.ExecuteBuy(ctx, user.ID, "AAA", 10, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Equal(t, int64(10), txn.Shares)
	assert.False(t, txn.TransectedAt.IsZero())

	refreshed, err := database.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.Cash.Equal(decimal.NewFromInt(9500)), "cash: %s", refreshed.Cash)

	holdings, err := database.GetHoldings(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, models.Holding{Symbol: "AAA", Shares: 10}, holdings[0])

	// Sell 4 AAA at 60: cash 9500 -> 9740, holding 6.
	txn, err = database.ExecuteSell(ctx, user.ID, "AAA", 4, decimal.NewFromInt(60))
	require.NoError(t, err)
	assert.Equal(t, int64(-4), txn.Shares)

	refreshed, err = database.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.Cash.Equal(decimal.NewFromInt(9740)), "cash: %s", refreshed.Cash)

	holdings, err = database.GetHoldings(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(6), holdings[0].Shares)

	t.Run("InsufficientHoldings", func(t *testing.T) {
		_, err := database.ExecuteSell(ctx, user.ID, "AAA", 10, decimal.NewFromInt(60))
		assert.ErrorIs(t, err, models.ErrInsufficientHoldings)

		unchanged, err := database.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, unchanged.Cash.Equal(decimal.NewFromInt(9740)))
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		_, err := database.ExecuteBuy(ctx, user.ID, "AAA", 1000, decimal.NewFromInt(50))
		assert.ErrorIs(t, err, models.ErrInsufficientFunds)

		unchanged, err := database.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, unchanged.Cash.Equal(decimal.NewFromInt(9740)))
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, err := database.ExecuteBuy(ctx, 9999, "AAA", 1, decimal.NewFromInt(50))
		assert.ErrorIs(t, err, models.ErrUserNotFound)
		_, err = database.ExecuteSell(ctx, 9999, "AAA", 1, decimal.NewFromInt(50))
		assert.ErrorIs(t, err, models.ErrUserNotFound)
	})
}

func TestGetUserTransactions_Order(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	user, err := database.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)

	_, err = database.ExecuteBuy(ctx, user.ID, "AAA", 10, decimal.NewFromInt(50))
	require.NoError(t, err)
	_, err = database.ExecuteSell(ctx, user.ID, "AAA", 4, decimal.NewFromInt(60))
	require.NoError(t, err)

	txns, err := database.GetUserTransactions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, int64(-4), txns[0].Shares, "newest first")
	assert.Equal(t, int64(10), txns[1].Shares)
}

func TestConcurrentSells_HoldingNeverNegative(t *testing.T) {
	// Two sells racing for the same holding serialize on the user row
	// lock; only one can pass the sufficiency check.
	database := openTestDB(t)
	ctx := context.Background()

	user, err := database.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	_, err = database.ExecuteBuy(ctx, user.ID, "AAA", 10, decimal.NewFromInt(50))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = database.ExecuteSell(ctx, user.ID, "AAA", 7, decimal.NewFromInt(60))
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, models.ErrInsufficientHoldings)
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one of the racing sells must be rejected")

	holdings, err := database.GetHoldings(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(3), holdings[0].Shares)
}
