// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"discord-casino-bot/internal/model"
)

// Common errors for repository operations. Shared with the escrow and
// session layers through the model package so callers can errors.Is
// without importing the persistence layer.
var (
	ErrAccountNotFound   = model.ErrAccountNotFound
	ErrInsufficientFunds = model.ErrInsufficientFunds
)

// AccountRepository is the coin ledger. All balance mutations go
// through it; conflicting writes to one account are serialized by the
// database row, and batch settlements run inside a transaction.
type AccountRepository struct {
	pool         *pgxpool.Pool
	initialCoins int64
}

// NewAccountRepository creates a new AccountRepository instance.
func NewAccountRepository(pool *pgxpool.Pool, initialCoins int64) *AccountRepository {
	return &AccountRepository{pool: pool, initialCoins: initialCoins}
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.UserID, &a.Coins, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID retrieves an account by Discord user ID.
// Returns ErrAccountNotFound if the account does not exist.
func (r *AccountRepository) GetByID(ctx context.Context, userID int64) (*model.Account, error) {
	const query = `
		SELECT user_id, coins, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
	`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// GetOrCreate retrieves an account, creating one with the configured
// initial balance if it does not exist. Safe under concurrent first
// use: the insert is a no-op when another caller won the race.
func (r *AccountRepository) GetOrCreate(ctx context.Context, userID int64) (*model.Account, error) {
	const insert = `
		INSERT INTO accounts (user_id, coins, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, insert, userID, r.initialCoins); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return r.GetByID(ctx, userID)
}

// AddCoins adds amount to an account's balance, saturating at
// model.MaxCoins. Used for unilateral grants and compensating credits.
func (r *AccountRepository) AddCoins(ctx context.Context, userID int64, amount int64) error {
	const query = `
		UPDATE accounts
		SET coins = LEAST($3, coins + $2), updated_at = NOW()
		WHERE user_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, userID, amount, model.MaxCoins)
	if err != nil {
		return fmt.Errorf("failed to add coins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SubtractCoins subtracts amount from an account's balance, saturating
// at zero. Used for unilateral admin deductions, never for wagers.
func (r *AccountRepository) SubtractCoins(ctx context.Context, userID int64, amount int64) error {
	const query = `
		UPDATE accounts
		SET coins = GREATEST(0, coins - $2), updated_at = NOW()
		WHERE user_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to subtract coins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetCoins overwrites an account's balance, creating the account if it
// does not exist. Admin set operation.
func (r *AccountRepository) SetCoins(ctx context.Context, userID int64, coins int64) error {
	const query = `
		INSERT INTO accounts (user_id, coins, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET coins = $2, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, userID, coins); err != nil {
		return fmt.Errorf("failed to set coins: %w", err)
	}
	return nil
}

// ResetCoins returns an account to the configured starting balance,
// creating the account if it does not exist. Admin reset operation.
func (r *AccountRepository) ResetCoins(ctx context.Context, userID int64) error {
	return r.SetCoins(ctx, userID, r.initialCoins)
}

// DebitIfSufficient decrements an account's balance only when it covers
// the amount, as a single conditional update. Returns
// ErrInsufficientFunds when the balance is too low (or the account does
// not exist). Wager debits use this instead of SubtractCoins so an
// uncovered wager is rejected outright rather than saturated.
func (r *AccountRepository) DebitIfSufficient(ctx context.Context, userID int64, amount int64) error {
	const query = `
		UPDATE accounts
		SET coins = coins - $2, updated_at = NOW()
		WHERE user_id = $1 AND coins >= $2
	`

	tag, err := r.pool.Exec(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// Transfer moves amount from sender to receiver as one database
// transaction. The receiver is created with the initial balance plus
// amount when missing. Returns ErrInsufficientFunds when the sender
// cannot cover the amount.
func (r *AccountRepository) Transfer(ctx context.Context, senderID, receiverID int64, amount int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback(ctx)

	const debit = `
		UPDATE accounts
		SET coins = coins - $2, updated_at = NOW()
		WHERE user_id = $1 AND coins >= $2
	`
	tag, err := tx.Exec(ctx, debit, senderID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit sender: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}

	const credit = `
		INSERT INTO accounts (user_id, coins, created_at, updated_at)
		VALUES ($1, LEAST($4, $2 + $3), NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET coins = LEAST($4, accounts.coins + $3), updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, credit, receiverID, r.initialCoins, amount, model.MaxCoins); err != nil {
		return fmt.Errorf("failed to credit receiver: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

// ApplyMany applies a batch of absolute balance writes as one database
// transaction. Either every update lands or none does; a write against
// a missing account fails the whole batch. Used to settle finished
// games where several balances must change together.
func (r *AccountRepository) ApplyMany(ctx context.Context, updates []model.BalanceUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin settlement: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		UPDATE accounts
		SET coins = LEAST($3, GREATEST(0, $2)), updated_at = NOW()
		WHERE user_id = $1
	`

	for _, u := range updates {
		tag, err := tx.Exec(ctx, query, u.UserID, u.Coins, model.MaxCoins)
		if err != nil {
			return fmt.Errorf("failed to apply balance for %d: %w", u.UserID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("apply balance for %d: %w", u.UserID, ErrAccountNotFound)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}
	return nil
}

// GetTopAccounts retrieves the top N accounts by balance.
func (r *AccountRepository) GetTopAccounts(ctx context.Context, limit int) ([]*model.Account, error) {
	const query = `
		SELECT user_id, coins, created_at, updated_at
		FROM accounts
		ORDER BY coins DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}
