// Package repository tests use testcontainers-go to spin up a
// PostgreSQL container; they are skipped when Docker is unavailable.
package repository

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"discord-casino-bot/internal/model"
)

const testInitialCoins = 1000

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection
// pool. Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return pool, cleanup
}

// migrate applies the database schema
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			user_id BIGINT PRIMARY KEY,
			coins BIGINT NOT NULL DEFAULT 1000 CHECK (coins >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES accounts(user_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func TestAccountRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	account, err := repo.GetOrCreate(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), account.UserID)
	assert.Equal(t, int64(testInitialCoins), account.Coins)
	assert.False(t, account.CreatedAt.IsZero())

	// A second call returns the existing account unchanged.
	require.NoError(t, repo.AddCoins(ctx, 12345, 500))
	account, err = repo.GetOrCreate(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, int64(testInitialCoins+500), account.Coins)
}

func TestAccountRepository_GetOrCreateConcurrent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	// All racers must see exactly one freshly opened account.
	const racers = 10
	var wg sync.WaitGroup
	wg.Add(racers)
	errs := make([]error, racers)
	for n := 0; n < racers; n++ {
		go func(n int) {
			defer wg.Done()
			account, err := repo.GetOrCreate(ctx, 777)
			if err == nil && account.Coins != testInitialCoins {
				t.Errorf("racer %d saw balance %d", n, account.Coins)
			}
			errs[n] = err
		}(n)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestAccountRepository_GetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = repo.GetOrCreate(ctx, 12345)
	require.NoError(t, err)

	account, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), account.UserID)
}

func TestAccountRepository_AddCoinsSaturates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.AddCoins(ctx, 1, model.MaxCoins))
	account, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.MaxCoins, account.Coins)

	// Crediting a missing account is an error, not an upsert.
	assert.ErrorIs(t, repo.AddCoins(ctx, 404, 10), ErrAccountNotFound)
}

func TestAccountRepository_SubtractCoinsClampsAtZero(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.SubtractCoins(ctx, 1, testInitialCoins*10))
	account, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Coins)
}

func TestAccountRepository_SetCoins(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	// SetCoins upserts, so no prior account is needed.
	require.NoError(t, repo.SetCoins(ctx, 5, 42))
	account, err := repo.GetByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(42), account.Coins)

	require.NoError(t, repo.SetCoins(ctx, 5, 7))
	account, err = repo.GetByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(7), account.Coins)
}

func TestAccountRepository_ResetCoins(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 6)
	require.NoError(t, err)
	require.NoError(t, repo.AddCoins(ctx, 6, 500))

	require.NoError(t, repo.ResetCoins(ctx, 6))
	account, err := repo.GetByID(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(testInitialCoins), account.Coins)

	// Resetting an unknown account opens it at the starting balance.
	require.NoError(t, repo.ResetCoins(ctx, 7))
	account, err = repo.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(testInitialCoins), account.Coins)
}

func TestAccountRepository_DebitIfSufficient(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.DebitIfSufficient(ctx, 1, 400))
	account, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(testInitialCoins-400), account.Coins)

	// A debit that would overdraw changes nothing.
	err = repo.DebitIfSufficient(ctx, 1, testInitialCoins)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	account, err = repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(testInitialCoins-400), account.Coins)

	// Exact balance is sufficient.
	require.NoError(t, repo.DebitIfSufficient(ctx, 1, testInitialCoins-400))
	account, err = repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Coins)
}

func TestAccountRepository_DebitIfSufficientConcurrent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)

	// With a balance of 1000 and twenty concurrent 100-coin debits,
	// exactly ten must succeed.
	const attempts = 20
	var wg sync.WaitGroup
	wg.Add(attempts)
	results := make([]error, attempts)
	for n := 0; n < attempts; n++ {
		go func(n int) {
			defer wg.Done()
			results[n] = repo.DebitIfSufficient(ctx, 1, 100)
		}(n)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 10, succeeded)

	account, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Coins)
}

func TestAccountRepository_Transfer(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	_, err = repo.GetOrCreate(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, repo.Transfer(ctx, 1, 2, 300))

	sender, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	receiver, err := repo.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(testInitialCoins-300), sender.Coins)
	assert.Equal(t, int64(testInitialCoins+300), receiver.Coins)

	// Insufficient balance leaves both sides untouched.
	err = repo.Transfer(ctx, 1, 2, testInitialCoins)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	sender, err = repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(testInitialCoins-300), sender.Coins)
}

func TestAccountRepository_TransferOpensReceiverAccount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)

	// Sending to someone who never played opens their account with the
	// initial balance plus the transferred amount.
	require.NoError(t, repo.Transfer(ctx, 1, 9, 250))
	receiver, err := repo.GetByID(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(testInitialCoins+250), receiver.Coins)
}

func TestAccountRepository_ApplyMany(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	_, err = repo.GetOrCreate(ctx, 2)
	require.NoError(t, err)

	err = repo.ApplyMany(ctx, []model.BalanceUpdate{
		{UserID: 1, Coins: 1200},
		{UserID: 2, Coins: 800},
	})
	require.NoError(t, err)

	a1, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	a2, err := repo.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), a1.Coins)
	assert.Equal(t, int64(800), a2.Coins)
}

func TestAccountRepository_ApplyManyRollsBackOnMissingAccount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)

	err = repo.ApplyMany(ctx, []model.BalanceUpdate{
		{UserID: 1, Coins: 5000},
		{UserID: 404, Coins: 100},
	})
	assert.ErrorIs(t, err, ErrAccountNotFound)

	// The first write must not have survived the rollback.
	account, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(testInitialCoins), account.Coins)
}

func TestAccountRepository_ApplyManyClampsToRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	_, err = repo.GetOrCreate(ctx, 2)
	require.NoError(t, err)

	err = repo.ApplyMany(ctx, []model.BalanceUpdate{
		{UserID: 1, Coins: -50},
		{UserID: 2, Coins: model.MaxCoins + 1},
	})
	require.NoError(t, err)

	a1, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	a2, err := repo.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), a1.Coins)
	assert.Equal(t, model.MaxCoins, a2.Coins)
}

func TestAccountRepository_GetTopAccounts(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool, testInitialCoins)
	ctx := context.Background()

	for id, coins := range map[int64]int64{1: 500, 2: 2500, 3: 1500} {
		require.NoError(t, repo.SetCoins(ctx, id, coins))
	}

	top, err := repo.GetTopAccounts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(2), top[0].UserID)
	assert.Equal(t, int64(3), top[1].UserID)
}

func TestTransactionRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	accounts := NewAccountRepository(pool, testInitialCoins)
	txs := NewTransactionRepository(pool)
	ctx := context.Background()

	_, err := accounts.GetOrCreate(ctx, 1)
	require.NoError(t, err)

	desc := "duel against 2"
	tx, err := txs.Create(ctx, 1, -100, model.TxTypeDuelBet, &desc)
	require.NoError(t, err)
	assert.Equal(t, int64(-100), tx.Amount)
	assert.Equal(t, model.TxTypeDuelBet, tx.Type)

	_, err = txs.Create(ctx, 1, 200, model.TxTypeDuelPayout, nil)
	require.NoError(t, err)

	history, err := txs.GetByUserID(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// Newest first.
	assert.Equal(t, model.TxTypeDuelPayout, history[0].Type)
}
