// Package escrow tracks wager debits taken during a game session and
// returns them when the session does not settle cleanly.
package escrow

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Ledger is the subset of ledger operations the guard needs.
type Ledger interface {
	// DebitIfSufficient removes amount from the account's balance or
	// fails without changing it when the balance is too low.
	DebitIfSufficient(ctx context.Context, userID int64, amount int64) error
	// AddCoins credits amount back to the account, saturating at the
	// balance cap.
	AddCoins(ctx context.Context, userID int64, amount int64) error
}

// Entry is one tracked debit.
type Entry struct {
	UserID int64
	Amount int64
}

// Guard tracks the wager debits of one in-flight session. Arm it with
// DebitAndTrack, disarm it with Clear after a clean settlement, and
// defer Release so every other exit path replays compensating credits
// exactly once:
//
//	guard := escrow.NewGuard(ledger)
//	defer guard.Release(ctx)
//	...
//	guard.Clear()
type Guard struct {
	ledger Ledger

	mu      sync.Mutex
	entries []Entry
	closed  bool
}

// NewGuard creates a guard for one session.
func NewGuard(ledger Ledger) *Guard {
	return &Guard{ledger: ledger}
}

// DebitAndTrack debits amount from the account and records the entry
// for later compensation. The debit is a single conditional update, so
// an uncovered wager fails without taking anything.
func (g *Guard) DebitAndTrack(ctx context.Context, userID int64, amount int64) error {
	if err := g.ledger.DebitIfSufficient(ctx, userID, amount); err != nil {
		return err
	}

	g.mu.Lock()
	g.entries = append(g.entries, Entry{UserID: userID, Amount: amount})
	g.mu.Unlock()
	return nil
}

// Entries returns a copy of the tracked debits.
func (g *Guard) Entries() []Entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Entry(nil), g.entries...)
}

// Escrowed returns the total amount currently tracked.
func (g *Guard) Escrowed() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var sum int64
	for _, e := range g.entries {
		sum += e.Amount
	}
	return sum
}

// Clear disarms the guard after a clean settlement. The coins were
// already redistributed by the ledger, so the entries are discarded
// without crediting.
func (g *Guard) Clear() {
	g.mu.Lock()
	g.entries = nil
	g.closed = true
	g.mu.Unlock()
}

// Refund credits every tracked entry back and disarms the guard. This
// is the deliberate timeout path: the session ended without a result,
// so each participant gets their wager back.
func (g *Guard) Refund(ctx context.Context) {
	g.compensate(ctx)
}

// Release compensates tracked entries unless the guard was already
// cleared or refunded. Meant to run deferred on every session exit
// path; calling it after Clear or Refund is a no-op, so the
// compensation runs at most once.
func (g *Guard) Release(ctx context.Context) {
	g.compensate(ctx)
}

func (g *Guard) compensate(ctx context.Context) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	entries := g.entries
	g.entries = nil
	g.closed = true
	g.mu.Unlock()

	if len(entries) == 0 {
		return
	}

	log.Warn().Int("entries", len(entries)).Msg("Session ended without settlement, restoring escrowed coins")

	for _, e := range entries {
		if err := g.ledger.AddCoins(ctx, e.UserID, e.Amount); err != nil {
			// Best effort: a failed credit is logged, not retried.
			log.Error().
				Err(err).
				Int64("user_id", e.UserID).
				Int64("amount", e.Amount).
				Msg("Failed to restore escrowed coins")
		}
	}
}
