package session

import (
	"fmt"
	"strings"

	"discord-casino-bot/internal/game/blackjack"
	"discord-casino-bot/internal/game/duel"
)

// mention is the placeholder the presentation layer substitutes with a
// platform user reference.
func mention(userID int64) string {
	return fmt.Sprintf("<@%d>", userID)
}

func renderDuelChallenge(challengerID, opponentID int64, bet int64) *Render {
	r := &Render{
		Title:       "Duel",
		Description: fmt.Sprintf("%s challenged %s to a duel", mention(challengerID), mention(opponentID)),
		Fields: []Field{
			{Name: "Challenger", Value: mention(challengerID)},
			{Name: "Challenged", Value: mention(opponentID)},
		},
		Actions: []string{"rock", "paper", "scissors"},
	}
	if bet > 0 {
		pot := bet * 2
		r.Payout = &pot
	}
	return r
}

func renderDuelResult(challengerID, opponentID int64, challengerChoice, opponentChoice duel.Choice, result duel.Result, bet int64) *Render {
	opponentName := "the house"
	if opponentID != 0 {
		opponentName = mention(opponentID)
	}

	var verb string
	challengerTitle, opponentTitle := "Challenger", "Challenged"
	switch result {
	case duel.Win:
		verb = "beat"
		challengerTitle = "Challenger :crown:"
	case duel.Lose:
		verb = "lost to"
		opponentTitle = ":crown: Challenged"
	default:
		verb = "tied with"
	}

	r := &Render{
		Title: "Duel result",
		Description: fmt.Sprintf(
			"%s picked %s and %s %s, who picked %s",
			mention(challengerID), challengerChoice, verb, opponentName, opponentChoice,
		),
		Fields: []Field{
			{Name: challengerTitle, Value: fmt.Sprintf("%s %s", mention(challengerID), challengerChoice.Emoji())},
			{Name: opponentTitle, Value: fmt.Sprintf("%s %s", opponentChoice.Emoji(), opponentName)},
		},
		Done: true,
	}
	if bet > 0 {
		pot := bet * 2
		r.Payout = &pot
	}
	return r
}

func renderDuelTimeout(challengerID, opponentID int64, bet int64) *Render {
	r := &Render{
		Title:       "Duel",
		Description: fmt.Sprintf("%s never answered the challenge", mention(opponentID)),
		Done:        true,
	}
	if bet > 0 {
		refund := bet
		r.Payout = &refund
		r.Fields = append(r.Fields, Field{
			Name:  "Refund",
			Value: fmt.Sprintf("%d coins returned to %s", bet, mention(challengerID)),
		})
	}
	return r
}

func handLine(h *blackjack.Hand) string {
	names := make([]string, 0, len(h.Cards()))
	for _, card := range h.Cards() {
		names = append(names, card.String())
	}
	return fmt.Sprintf("%s (%d)", strings.Join(names, " "), h.Value())
}

func renderBlackjack(game *blackjack.Game, playerID int64, bet int64, walkedAway bool) *Render {
	r := &Render{
		Title: "Blackjack",
		Fields: []Field{
			{Name: "Player hand", Value: handLine(game.PlayerHand())},
			{Name: "Dealer hand", Value: handLine(game.DealerHand())},
			{Name: "House rule", Value: "The dealer stands on 17 or higher"},
		},
	}

	base := fmt.Sprintf("**Player:** %s\n**Bet:** %d coins", mention(playerID), bet)

	switch {
	case walkedAway:
		r.Description = fmt.Sprintf("**The player walked away**\n\n%s", base)
		r.Done = true
	case game.Finished():
		var line string
		switch game.Outcome() {
		case blackjack.Win:
			line = "**The player won!**"
		case blackjack.Tie:
			line = "**The player tied!**"
		default:
			line = "**The player lost**"
		}
		r.Description = fmt.Sprintf("%s\n\n%s", line, base)
		payout := game.Outcome().Payout(bet)
		r.Payout = &payout
		r.Done = true
	default:
		r.Description = base
		r.Actions = []string{"hit", "stand"}
	}

	return r
}

func renderBlackjackTimeout(game *blackjack.Game, playerID int64, bet int64) *Render {
	return renderBlackjack(game, playerID, bet, true)
}

// renderFailure is the generic terminal state for a session that died
// mid-game.
func renderFailure() *Render {
	return &Render{
		Title:       "Something went wrong",
		Description: "🐨 Oops, something went wrong! Any escrowed wager has been returned.",
		Done:        true,
	}
}
