// Package session drives wagering game sessions end-to-end: it escrows
// wagers, feeds external interaction events into the game engines and
// settles or refunds through the ledger.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"discord-casino-bot/internal/escrow"
	"discord-casino-bot/internal/game/blackjack"
	"discord-casino-bot/internal/game/duel"
	"discord-casino-bot/internal/model"
	"discord-casino-bot/internal/pkg/lock"
)

// Session-level errors.
var (
	ErrSelfChallenge = errors.New("cannot challenge yourself")
	ErrInvalidBet    = errors.New("invalid bet amount")
)

// Event is one external interaction relevant to a session, typically a
// button press.
type Event struct {
	SessionID string
	UserID    int64
	Action    string
}

// EventSource supplies the next interaction event for a session. Each
// call is single-shot and re-armed by the controller in a loop.
type EventSource interface {
	// WaitNext blocks until an event for sessionID arrives, the timeout
	// elapses (nil event, nil error) or ctx is done.
	WaitNext(ctx context.Context, sessionID string, timeout time.Duration) (*Event, error)
}

// Field is one labeled line of a render.
type Field struct {
	Name  string
	Value string
}

// Render is the platform-neutral description of a session state that
// the presentation collaborator turns into user-visible output.
type Render struct {
	Title       string
	Description string
	Fields      []Field
	Payout      *int64   // pot size, set only for wagered sessions
	Actions     []string // offered actions; empty once terminal
	Done        bool
}

// Sink receives renders and per-user notices. The core never formats
// platform markup; the sink owns that.
type Sink interface {
	Present(ctx context.Context, sessionID string, r *Render) error
	Notice(ctx context.Context, sessionID string, userID int64, text string) error
}

// Ledger is the balance store a controller settles against.
type Ledger interface {
	escrow.Ledger
	GetOrCreate(ctx context.Context, userID int64) (*model.Account, error)
	ApplyMany(ctx context.Context, updates []model.BalanceUpdate) error
}

// Recorder appends transaction history entries. Recording is
// best-effort; it never fails a session.
type Recorder interface {
	Record(ctx context.Context, userID int64, amount int64, txType string, description string)
}

// Config holds per-game session settings.
type Config struct {
	MaxBet           int64
	DuelTimeout      time.Duration
	BlackjackTimeout time.Duration
	BlackjackDecks   int
}

// Controller runs wagering sessions. One controller serves all
// sessions; each session runs on its caller's goroutine and shares no
// mutable state with other sessions beyond the ledger.
type Controller struct {
	ledger   Ledger
	events   EventSource
	sink     Sink
	locks    *lock.AccountLock
	recorder Recorder
	cfg      Config

	// Injection points for deterministic play.
	botChoice func() duel.Choice
	newGame   func() *blackjack.Game
}

// NewController creates a session controller.
func NewController(ledger Ledger, events EventSource, sink Sink, locks *lock.AccountLock, cfg Config) *Controller {
	return &Controller{
		ledger:    ledger,
		events:    events,
		sink:      sink,
		locks:     locks,
		cfg:       cfg,
		botChoice: duel.RandomChoice,
		newGame: func() *blackjack.Game {
			return blackjack.New(cfg.BlackjackDecks)
		},
	}
}

// SetRecorder attaches a transaction history recorder.
func (c *Controller) SetRecorder(r Recorder) {
	c.recorder = r
}

// SetSink replaces the presentation sink. The controller and its sink
// are often constructed in a cycle, so the sink may be wired in after
// NewController.
func (c *Controller) SetSink(s Sink) {
	c.sink = s
}

// record appends a history entry when a recorder is attached.
func (c *Controller) record(ctx context.Context, userID, amount int64, txType, description string) {
	if c.recorder != nil {
		c.recorder.Record(ctx, userID, amount, txType, description)
	}
}

// validateBet rejects non-positive or oversized wagers. Zero is only
// valid where the caller treats it as the wager-less path.
func (c *Controller) validateBet(bet int64, allowZero bool) error {
	if bet == 0 && allowZero {
		return nil
	}
	if bet <= 0 || (c.cfg.MaxBet > 0 && bet > c.cfg.MaxBet) {
		return fmt.Errorf("%w: %d", ErrInvalidBet, bet)
	}
	return nil
}

// debitLocked takes a wager debit while holding the account's lock, so
// concurrent sessions cannot both pass the balance check.
func (c *Controller) debitLocked(ctx context.Context, guard *escrow.Guard, userID, amount int64) error {
	return c.locks.WithLock(userID, func() error {
		return guard.DebitAndTrack(ctx, userID, amount)
	})
}

// credit is one account's settlement delta on top of its current
// balance.
type credit struct {
	UserID int64
	Amount int64
}

// settle reads each account's balance and applies its credit in one
// batch, holding every affected account's lock in ID order for the
// whole read-then-write so a concurrent balance change cannot land in
// between and be overwritten.
func (c *Controller) settle(ctx context.Context, credits []credit) error {
	ids := make([]int64, 0, len(credits))
	for _, cr := range credits {
		ids = append(ids, cr.UserID)
	}
	slices.Sort(ids)

	for _, id := range ids {
		c.locks.Lock(id)
	}
	defer func() {
		for _, id := range ids {
			c.locks.Unlock(id)
		}
	}()

	updates := make([]model.BalanceUpdate, 0, len(credits))
	for _, cr := range credits {
		account, err := c.ledger.GetOrCreate(ctx, cr.UserID)
		if err != nil {
			return err
		}
		updates = append(updates, model.BalanceUpdate{UserID: cr.UserID, Coins: account.Coins + cr.Amount})
	}
	return c.ledger.ApplyMany(ctx, updates)
}

// Abort presents the terminal state for a session whose run ended
// abnormally. By the time it is called any escrowed wager has already
// been returned by the guard's release.
func (c *Controller) Abort(ctx context.Context, sessionID string) {
	c.present(ctx, sessionID, renderFailure())
}
