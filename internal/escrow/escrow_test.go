package escrow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discord-casino-bot/internal/model"
)

// fakeLedger is an in-memory Ledger with optional credit failures.
type fakeLedger struct {
	balances   map[int64]int64
	failCredit map[int64]bool
	credits    map[int64]int
}

func newFakeLedger(balances map[int64]int64) *fakeLedger {
	return &fakeLedger{
		balances:   balances,
		failCredit: make(map[int64]bool),
		credits:    make(map[int64]int),
	}
}

func (f *fakeLedger) DebitIfSufficient(_ context.Context, userID, amount int64) error {
	if f.balances[userID] < amount {
		return model.ErrInsufficientFunds
	}
	f.balances[userID] -= amount
	return nil
}

func (f *fakeLedger) AddCoins(_ context.Context, userID, amount int64) error {
	f.credits[userID]++
	if f.failCredit[userID] {
		return errors.New("credit failed")
	}
	f.balances[userID] += amount
	return nil
}

func TestDebitAndTrack(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 100})
	guard := NewGuard(ledger)
	ctx := context.Background()

	require.NoError(t, guard.DebitAndTrack(ctx, 1, 30))
	assert.Equal(t, int64(70), ledger.balances[1])
	assert.Equal(t, int64(30), guard.Escrowed())
	assert.Equal(t, []Entry{{UserID: 1, Amount: 30}}, guard.Entries())
}

func TestDebitAndTrackInsufficient(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 10})
	guard := NewGuard(ledger)

	err := guard.DebitAndTrack(context.Background(), 1, 30)
	require.ErrorIs(t, err, model.ErrInsufficientFunds)

	// A rejected debit changes nothing and tracks nothing.
	assert.Equal(t, int64(10), ledger.balances[1])
	assert.Empty(t, guard.Entries())
}

func TestClearDiscardsWithoutCrediting(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 100})
	guard := NewGuard(ledger)
	ctx := context.Background()

	require.NoError(t, guard.DebitAndTrack(ctx, 1, 30))
	guard.Clear()
	guard.Release(ctx)

	assert.Equal(t, int64(70), ledger.balances[1])
	assert.Zero(t, ledger.credits[1])
}

func TestReleaseCompensatesOnce(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 100, 2: 50})
	guard := NewGuard(ledger)
	ctx := context.Background()

	require.NoError(t, guard.DebitAndTrack(ctx, 1, 30))
	require.NoError(t, guard.DebitAndTrack(ctx, 2, 20))

	guard.Release(ctx)
	guard.Release(ctx)
	guard.Release(ctx)

	assert.Equal(t, int64(100), ledger.balances[1])
	assert.Equal(t, int64(50), ledger.balances[2])
	assert.Equal(t, 1, ledger.credits[1])
	assert.Equal(t, 1, ledger.credits[2])
}

func TestRefundDisarmsRelease(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 100})
	guard := NewGuard(ledger)
	ctx := context.Background()

	require.NoError(t, guard.DebitAndTrack(ctx, 1, 30))
	guard.Refund(ctx)
	guard.Release(ctx)

	assert.Equal(t, int64(100), ledger.balances[1])
	assert.Equal(t, 1, ledger.credits[1])
}

func TestCompensateBestEffort(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 100, 2: 50})
	ledger.failCredit[1] = true
	guard := NewGuard(ledger)
	ctx := context.Background()

	require.NoError(t, guard.DebitAndTrack(ctx, 1, 30))
	require.NoError(t, guard.DebitAndTrack(ctx, 2, 20))

	// A failed credit must not stop the remaining entries.
	guard.Release(ctx)

	assert.Equal(t, int64(70), ledger.balances[1])
	assert.Equal(t, int64(50), ledger.balances[2])
	assert.Equal(t, 1, ledger.credits[2])
}

func TestReleaseWithoutDebitsIsNoop(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{})
	guard := NewGuard(ledger)

	guard.Release(context.Background())
	assert.Empty(t, ledger.credits)
}
