package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"discord-casino-bot/internal/escrow"
	"discord-casino-bot/internal/game/duel"
	"discord-casino-bot/internal/model"
)

// DuelOutcome is the terminal state of a duel session.
type DuelOutcome struct {
	Result           duel.Result // relative to the challenger
	ChallengerChoice duel.Choice
	OpponentChoice   duel.Choice
	Wager            int64 // per-side wager, 0 for a friendly duel
	Completed        bool  // false when the session timed out
}

// RunDuel drives one rock/paper/scissors duel from challenge to
// settlement or refund. The challenger's choice is fixed up front; a
// human opponent answers through the event source, a bot opponent
// draws a uniformly random choice and the duel resolves immediately.
// A bot never wagers its own coins: with a bet the house covers the
// payout and only the challenger escrows. bet == 0 is the wager-less
// path with no ledger writes at all.
func (c *Controller) RunDuel(ctx context.Context, sessionID string, challengerID, opponentID int64, botOpponent bool, choice duel.Choice, bet int64) (*DuelOutcome, error) {
	if !botOpponent && challengerID == opponentID {
		return nil, ErrSelfChallenge
	}
	if err := c.validateBet(bet, true); err != nil {
		return nil, err
	}

	guard := escrow.NewGuard(c.ledger)
	defer guard.Release(ctx)

	if botOpponent {
		return c.runBotDuel(ctx, sessionID, guard, challengerID, choice, bet)
	}

	if bet > 0 {
		if err := c.debitLocked(ctx, guard, challengerID, bet); err != nil {
			if errors.Is(err, model.ErrInsufficientFunds) {
				c.notice(ctx, sessionID, challengerID, "You do not have enough coins for that wager")
			}
			return nil, fmt.Errorf("challenger wager: %w", err)
		}
		c.record(ctx, challengerID, -bet, model.TxTypeDuelBet, fmt.Sprintf("duel against %d", opponentID))
	}

	if err := c.sink.Present(ctx, sessionID, renderDuelChallenge(challengerID, opponentID, bet)); err != nil {
		return nil, fmt.Errorf("present challenge: %w", err)
	}

	for {
		ev, err := c.events.WaitNext(ctx, sessionID, c.cfg.DuelTimeout)
		if err != nil {
			return nil, fmt.Errorf("wait for opponent: %w", err)
		}
		if ev == nil {
			// Timeout: only the challenger ever escrowed. Exactly one
			// refund runs; the deferred Release becomes a no-op.
			guard.Refund(ctx)
			if bet > 0 {
				c.record(ctx, challengerID, bet, model.TxTypeRefund, "duel timed out")
			}
			c.present(ctx, sessionID, renderDuelTimeout(challengerID, opponentID, bet))
			return &DuelOutcome{ChallengerChoice: choice, Wager: bet, Completed: false}, nil
		}

		if ev.UserID == challengerID {
			c.notice(ctx, sessionID, ev.UserID, "Easy there, it is your opponent's move")
			continue
		}
		if ev.UserID != opponentID {
			c.notice(ctx, sessionID, ev.UserID, "You were not invited to this duel")
			continue
		}

		opponentChoice := duel.ParseChoice(ev.Action)

		if bet > 0 {
			if err := c.debitLocked(ctx, guard, opponentID, bet); err != nil {
				if errors.Is(err, model.ErrInsufficientFunds) {
					// The opponent cannot cover the wager: the duel is
					// off and the challenger's escrow comes back.
					c.notice(ctx, sessionID, opponentID, "You do not have enough coins for that wager")
					guard.Refund(ctx)
					c.record(ctx, challengerID, bet, model.TxTypeRefund, "duel called off")
					c.present(ctx, sessionID, renderDuelTimeout(challengerID, opponentID, bet))
					return &DuelOutcome{ChallengerChoice: choice, Wager: bet, Completed: false}, nil
				}
				return nil, fmt.Errorf("opponent wager: %w", err)
			}
			c.record(ctx, opponentID, -bet, model.TxTypeDuelBet, fmt.Sprintf("duel against %d", challengerID))
		}

		result := duel.Resolve(choice, opponentChoice)

		if bet > 0 {
			if err := c.settleDuel(ctx, challengerID, opponentID, bet, result); err != nil {
				return nil, fmt.Errorf("settle duel: %w", err)
			}
			guard.Clear()
		}

		c.present(ctx, sessionID, renderDuelResult(challengerID, opponentID, choice, opponentChoice, result, bet))
		return &DuelOutcome{
			Result:           result,
			ChallengerChoice: choice,
			OpponentChoice:   opponentChoice,
			Wager:            bet,
			Completed:        true,
		}, nil
	}
}

// runBotDuel resolves a duel against the house: no opponent escrow, an
// immediate random choice, payout covered by the house.
func (c *Controller) runBotDuel(ctx context.Context, sessionID string, guard *escrow.Guard, challengerID int64, choice duel.Choice, bet int64) (*DuelOutcome, error) {
	if bet > 0 {
		if err := c.debitLocked(ctx, guard, challengerID, bet); err != nil {
			if errors.Is(err, model.ErrInsufficientFunds) {
				c.notice(ctx, sessionID, challengerID, "You do not have enough coins for that wager")
			}
			return nil, fmt.Errorf("challenger wager: %w", err)
		}
		c.record(ctx, challengerID, -bet, model.TxTypeDuelBet, "duel against the house")
	}

	botChoice := c.botChoice()
	result := duel.Resolve(choice, botChoice)

	if bet > 0 {
		payout := housePayout(result, bet)
		if err := c.settle(ctx, []credit{{UserID: challengerID, Amount: payout}}); err != nil {
			return nil, fmt.Errorf("settle duel: %w", err)
		}
		guard.Clear()
		if payout > 0 {
			c.record(ctx, challengerID, payout, model.TxTypeDuelPayout, "duel against the house")
		}
	}

	c.present(ctx, sessionID, renderDuelResult(challengerID, 0, choice, botChoice, result, bet))
	return &DuelOutcome{
		Result:           result,
		ChallengerChoice: choice,
		OpponentChoice:   botChoice,
		Wager:            bet,
		Completed:        true,
	}, nil
}

// duelPayout is what one side receives back from the pot: winners take
// both wagers, a tie returns each side its own.
func duelPayout(r duel.Result, bet int64) int64 {
	switch r {
	case duel.Win:
		return bet * 2
	case duel.Tie:
		return bet
	default:
		return 0
	}
}

// housePayout is what the house credits after a duel against it: the
// escrowed wager back plus winnings at 2:1 on a win, the wager back on
// a tie, nothing on a loss.
func housePayout(r duel.Result, bet int64) int64 {
	switch r {
	case duel.Win:
		return bet * 3
	case duel.Tie:
		return bet
	default:
		return 0
	}
}

// settleDuel redistributes the two escrowed wagers in one atomic batch.
func (c *Controller) settleDuel(ctx context.Context, challengerID, opponentID int64, bet int64, result duel.Result) error {
	challengerPayout := duelPayout(result, bet)
	var opponentResult duel.Result
	switch result {
	case duel.Win:
		opponentResult = duel.Lose
	case duel.Lose:
		opponentResult = duel.Win
	default:
		opponentResult = duel.Tie
	}
	opponentPayout := duelPayout(opponentResult, bet)

	err := c.settle(ctx, []credit{
		{UserID: challengerID, Amount: challengerPayout},
		{UserID: opponentID, Amount: opponentPayout},
	})
	if err != nil {
		return err
	}

	if challengerPayout > 0 {
		c.record(ctx, challengerID, challengerPayout, model.TxTypeDuelPayout, fmt.Sprintf("duel against %d", opponentID))
	}
	if opponentPayout > 0 {
		c.record(ctx, opponentID, opponentPayout, model.TxTypeDuelPayout, fmt.Sprintf("duel against %d", challengerID))
	}
	return nil
}

// present sends a render, logging failures instead of aborting the
// session over a presentation hiccup.
func (c *Controller) present(ctx context.Context, sessionID string, r *Render) {
	if err := c.sink.Present(ctx, sessionID, r); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("Failed to present session state")
	}
}

// notice sends a per-user notice, logging failures.
func (c *Controller) notice(ctx context.Context, sessionID string, userID int64, text string) {
	if err := c.sink.Notice(ctx, sessionID, userID, text); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Int64("user_id", userID).Msg("Failed to send notice")
	}
}
