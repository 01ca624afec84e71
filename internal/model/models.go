// Package model defines the data models for the Discord casino bot.
package model

import "time"

// MaxCoins is the upper bound for any account balance. Saturating
// balance writes clamp to this value instead of overflowing.
const MaxCoins int64 = 4_294_967_295

// Account represents a Discord user's coin balance.
// Accounts are created on first reference with the configured initial
// balance and are never deleted.
type Account struct {
	UserID    int64     `db:"user_id"`
	Coins     int64     `db:"coins"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// BalanceUpdate is an absolute balance write applied as part of a
// settlement batch.
type BalanceUpdate struct {
	UserID int64
	Coins  int64
}

// Transaction represents a balance change record.
type Transaction struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Amount      int64     `db:"amount"`
	Type        string    `db:"type"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeInitial         = "initial"          // Initial balance on account creation
	TxTypeTransfer        = "transfer"         // User-to-user coin send
	TxTypeAdminAdd        = "admin_add"        // Admin added coins
	TxTypeAdminSub        = "admin_sub"        // Admin subtracted coins
	TxTypeAdminSet        = "admin_set"        // Admin set balance
	TxTypeAdminReset      = "admin_reset"      // Admin reset to the starting balance
	TxTypeDuelBet         = "duel_bet"         // Duel wager escrowed
	TxTypeDuelPayout      = "duel_payout"      // Duel settlement payout
	TxTypeBlackjackBet    = "blackjack_bet"    // Blackjack wager escrowed
	TxTypeBlackjackPayout = "blackjack_payout" // Blackjack settlement payout
	TxTypeRefund          = "refund"           // Escrow returned after timeout or failure
)

// CoinStatus classifies a balance into a mood tier for presentation.
type CoinStatus int

const (
	StatusBroke CoinStatus = iota
	StatusPoor
	StatusOK
	StatusGood
	StatusRich
)

// StatusOf returns the tier for a balance.
func StatusOf(coins int64) CoinStatus {
	switch {
	case coins <= 0:
		return StatusBroke
	case coins < 500:
		return StatusPoor
	case coins < 2000:
		return StatusOK
	case coins < 10000:
		return StatusGood
	default:
		return StatusRich
	}
}

// Emoji returns the emoji shorthand shown next to a balance.
func (s CoinStatus) Emoji() string {
	switch s {
	case StatusBroke:
		return ":skull:"
	case StatusPoor:
		return ":rofl:"
	case StatusOK:
		return ":face_with_hand_over_mouth:"
	case StatusGood:
		return ":face_with_monocle:"
	default:
		return ":astonished:"
	}
}
