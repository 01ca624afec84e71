// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"discord-casino-bot/internal/model"
	"discord-casino-bot/internal/repository"
)

// Common errors for economy operations.
var (
	ErrInvalidAmount = errors.New("invalid amount: must be positive")
	ErrSelfTransfer  = errors.New("cannot send coins to yourself")
)

// EconomyService handles accounts, transfers and the admin balance
// operations that sit outside of games.
type EconomyService struct {
	accounts *repository.AccountRepository
	txs      *repository.TransactionRepository
}

// NewEconomyService creates a new EconomyService instance.
func NewEconomyService(
	accounts *repository.AccountRepository,
	txs *repository.TransactionRepository,
) *EconomyService {
	return &EconomyService{
		accounts: accounts,
		txs:      txs,
	}
}

// EnsureAccount makes sure an account exists for the user, opening one
// with the configured starting balance when it does not.
func (s *EconomyService) EnsureAccount(ctx context.Context, userID int64) (*model.Account, error) {
	account, err := s.accounts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure account: %w", err)
	}
	return account, nil
}

// Balance returns an account together with its wealth tier.
func (s *EconomyService) Balance(ctx context.Context, userID int64) (*model.Account, model.CoinStatus, error) {
	account, err := s.accounts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return account, model.StatusOf(account.Coins), nil
}

// Send moves coins from one user to another. The transfer itself is
// atomic; the history records are best-effort afterwards.
func (s *EconomyService) Send(ctx context.Context, fromID, toID int64, amount int64) error {
	if err := validateSend(fromID, toID, amount); err != nil {
		return err
	}

	if err := s.accounts.Transfer(ctx, fromID, toID, amount); err != nil {
		return err
	}

	s.Record(ctx, fromID, -amount, model.TxTypeTransfer, fmt.Sprintf("sent to %d", toID))
	s.Record(ctx, toID, amount, model.TxTypeTransfer, fmt.Sprintf("received from %d", fromID))
	return nil
}

// AddCoins credits an account by an admin's decree. The balance
// saturates at the maximum rather than overflowing.
func (s *EconomyService) AddCoins(ctx context.Context, userID int64, amount int64) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := s.accounts.GetOrCreate(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to ensure account: %w", err)
	}
	if err := s.accounts.AddCoins(ctx, userID, amount); err != nil {
		return nil, err
	}
	s.Record(ctx, userID, amount, model.TxTypeAdminAdd, "admin credit")
	return s.accounts.GetByID(ctx, userID)
}

// SubtractCoins debits an account by an admin's decree, clamping at
// zero.
func (s *EconomyService) SubtractCoins(ctx context.Context, userID int64, amount int64) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.accounts.SubtractCoins(ctx, userID, amount); err != nil {
		return nil, err
	}
	s.Record(ctx, userID, -amount, model.TxTypeAdminSub, "admin debit")
	return s.accounts.GetByID(ctx, userID)
}

// SetCoins pins an account's balance to an exact value.
func (s *EconomyService) SetCoins(ctx context.Context, userID int64, coins int64) (*model.Account, error) {
	if coins < 0 || coins > model.MaxCoins {
		return nil, ErrInvalidAmount
	}
	if err := s.accounts.SetCoins(ctx, userID, coins); err != nil {
		return nil, err
	}
	s.Record(ctx, userID, coins, model.TxTypeAdminSet, "admin set balance")
	return s.accounts.GetByID(ctx, userID)
}

// Reset returns an account to the starting balance new players get.
func (s *EconomyService) Reset(ctx context.Context, userID int64) (*model.Account, error) {
	if err := s.accounts.ResetCoins(ctx, userID); err != nil {
		return nil, err
	}
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.Record(ctx, userID, account.Coins, model.TxTypeAdminReset, "admin reset balance")
	return account, nil
}

// TopAccounts returns the richest accounts, richest first.
func (s *EconomyService) TopAccounts(ctx context.Context, limit int) ([]*model.Account, error) {
	return s.accounts.GetTopAccounts(ctx, limit)
}

// History returns a user's most recent balance changes.
func (s *EconomyService) History(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	return s.txs.GetByUserID(ctx, userID, limit)
}

// Record writes a history entry. Failures are logged and swallowed so
// a broken audit trail never blocks a balance change that already
// happened. It satisfies the session controller's Recorder.
func (s *EconomyService) Record(ctx context.Context, userID int64, amount int64, txType, description string) {
	if _, err := s.txs.Create(ctx, userID, amount, txType, &description); err != nil {
		log.Warn().Err(err).
			Int64("user_id", userID).
			Str("type", txType).
			Msg("failed to record transaction")
	}
}

// validateSend holds the pure checks for a user-to-user transfer.
func validateSend(fromID, toID int64, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if fromID == toID {
		return ErrSelfTransfer
	}
	return nil
}
