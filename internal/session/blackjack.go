package session

import (
	"context"
	"errors"
	"fmt"

	"discord-casino-bot/internal/escrow"
	"discord-casino-bot/internal/game/blackjack"
	"discord-casino-bot/internal/model"
)

// BlackjackOutcome is the terminal state of a blackjack session.
type BlackjackOutcome struct {
	Outcome     blackjack.Outcome
	PlayerValue int
	DealerValue int
	Bet         int64
	Payout      int64
	Completed   bool // false when the player walked away (timeout)
}

// RunBlackjack drives one blackjack round against the dealer. The bet
// is escrowed up front; hit/stand arrive through the event source and
// anyone but the player is turned away. A timeout counts as walking
// away and refunds the escrowed bet.
func (c *Controller) RunBlackjack(ctx context.Context, sessionID string, playerID int64, bet int64) (*BlackjackOutcome, error) {
	if err := c.validateBet(bet, false); err != nil {
		return nil, err
	}

	guard := escrow.NewGuard(c.ledger)
	defer guard.Release(ctx)

	if err := c.debitLocked(ctx, guard, playerID, bet); err != nil {
		if errors.Is(err, model.ErrInsufficientFunds) {
			c.notice(ctx, sessionID, playerID, "You do not have enough coins for that wager")
		}
		return nil, fmt.Errorf("blackjack wager: %w", err)
	}
	c.record(ctx, playerID, -bet, model.TxTypeBlackjackBet, "blackjack round")

	game := c.newGame()

	// A natural 21 resolves without ever entering the event loop.
	if game.Finished() {
		return c.finishBlackjack(ctx, sessionID, guard, game, playerID, bet)
	}

	if err := c.sink.Present(ctx, sessionID, renderBlackjack(game, playerID, bet, false)); err != nil {
		return nil, fmt.Errorf("present blackjack: %w", err)
	}

	for {
		ev, err := c.events.WaitNext(ctx, sessionID, c.cfg.BlackjackTimeout)
		if err != nil {
			return nil, fmt.Errorf("wait for player: %w", err)
		}
		if ev == nil {
			guard.Refund(ctx)
			c.record(ctx, playerID, bet, model.TxTypeRefund, "blackjack timed out")
			c.present(ctx, sessionID, renderBlackjackTimeout(game, playerID, bet))
			return &BlackjackOutcome{
				Outcome:     game.Outcome(),
				PlayerValue: game.PlayerHand().Value(),
				DealerValue: game.DealerHand().Value(),
				Bet:         bet,
				Completed:   false,
			}, nil
		}

		if ev.UserID != playerID {
			c.notice(ctx, sessionID, ev.UserID, "This is not your game")
			continue
		}

		switch ev.Action {
		case "hit":
			game.Hit()
		default:
			game.Stand()
		}

		if game.Finished() {
			return c.finishBlackjack(ctx, sessionID, guard, game, playerID, bet)
		}

		c.present(ctx, sessionID, renderBlackjack(game, playerID, bet, false))
	}
}

// finishBlackjack settles a terminal game: the payout lands on top of
// the post-escrow balance in one atomic write, then the guard is
// disarmed.
func (c *Controller) finishBlackjack(ctx context.Context, sessionID string, guard *escrow.Guard, game *blackjack.Game, playerID, bet int64) (*BlackjackOutcome, error) {
	payout := game.Outcome().Payout(bet)

	if err := c.settle(ctx, []credit{{UserID: playerID, Amount: payout}}); err != nil {
		return nil, fmt.Errorf("settle blackjack: %w", err)
	}
	guard.Clear()

	if payout > 0 {
		c.record(ctx, playerID, payout, model.TxTypeBlackjackPayout, "blackjack round")
	}

	c.present(ctx, sessionID, renderBlackjack(game, playerID, bet, false))
	return &BlackjackOutcome{
		Outcome:     game.Outcome(),
		PlayerValue: game.PlayerHand().Value(),
		DealerValue: game.DealerHand().Value(),
		Bet:         bet,
		Payout:      payout,
		Completed:   true,
	}, nil
}
