// Package blackjack implements a single-player blackjack game against
// a dealer.
package blackjack

import "math/rand"

// Card is one of the 13 blackjack ranks.
type Card int

const (
	Ace Card = iota
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

var allCards = [13]Card{
	Ace, Two, Three, Four, Five, Six, Seven,
	Eight, Nine, Ten, Jack, Queen, King,
}

// Value returns the base blackjack value of a card. Aces count as 1
// here; the soft-ace upgrade to 11 happens during hand valuation.
func (c Card) Value() int {
	switch {
	case c == Ace:
		return 1
	case c >= Ten:
		return 10
	default:
		return int(c) + 1
	}
}

// IsAce reports whether the card is an ace.
func (c Card) IsAce() bool {
	return c == Ace
}

// String returns the rank symbol.
func (c Card) String() string {
	return [...]string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}[c]
}

// Outcome is the terminal state of a game relative to the player.
type Outcome int

const (
	Unfinished Outcome = iota
	Win
	Lose
	Tie
)

// Payout returns the coins paid back for a bet at this outcome:
// a win pays double the bet, a tie returns it, a loss pays nothing.
func (o Outcome) Payout(bet int64) int64 {
	switch o {
	case Win:
		return bet * 2
	case Tie:
		return bet
	default:
		return 0
	}
}

// Hand is an ordered set of cards with its current value.
type Hand struct {
	cards []Card
	value int
}

// Cards returns the cards in draw order.
func (h *Hand) Cards() []Card {
	return h.cards
}

// Value returns the hand's blackjack value with soft-ace adjustment.
func (h *Hand) Value() int {
	return h.value
}

// take draws the next card from the shoe into the hand and revalues
// the whole hand. The value is always recomputed from scratch so ace
// softening never drifts across draws.
func (h *Hand) take(shoe *[]Card) {
	if len(*shoe) == 0 {
		panic("blackjack: shoe exhausted")
	}

	last := len(*shoe) - 1
	h.cards = append(h.cards, (*shoe)[last])
	*shoe = (*shoe)[:last]

	value := 0
	aces := 0
	for _, c := range h.cards {
		if c.IsAce() {
			value += 11
			aces++
		} else {
			value += c.Value()
		}
	}
	for value > 21 && aces > 0 {
		value -= 10
		aces--
	}

	h.value = value
}

// Game is one blackjack round. The shoe is shuffled once at creation
// and never reshuffled mid-game.
type Game struct {
	player  Hand
	dealer  Hand
	outcome Outcome
	shoe    []Card
}

// New creates a game with a shuffled shoe of decks standard decks,
// deals one dealer card and two player cards, and resolves immediately
// if the player is dealt a natural 21.
func New(decks int) *Game {
	shoe := make([]Card, 0, decks*4*len(allCards))
	for i := 0; i < decks*4; i++ {
		shoe = append(shoe, allCards[:]...)
	}
	rand.Shuffle(len(shoe), func(i, j int) {
		shoe[i], shoe[j] = shoe[j], shoe[i]
	})

	return NewWithShoe(shoe)
}

// NewWithShoe builds a game drawing from the end of the given shoe,
// last card first. Useful for deterministic replays.
func NewWithShoe(shoe []Card) *Game {
	g := &Game{shoe: shoe}

	g.dealer.take(&g.shoe)
	g.Hit()
	g.Hit()

	return g
}

// Finished reports whether the game reached a terminal outcome.
func (g *Game) Finished() bool {
	return g.outcome != Unfinished
}

// Outcome returns the terminal outcome, or Unfinished.
func (g *Game) Outcome() Outcome {
	return g.outcome
}

// PlayerHand returns the player's hand.
func (g *Game) PlayerHand() *Hand {
	return &g.player
}

// DealerHand returns the dealer's hand.
func (g *Game) DealerHand() *Hand {
	return &g.dealer
}

// Hit draws one card into the player's hand. At 21 or above no further
// player action is possible, so the game resolves through the dealer.
func (g *Game) Hit() {
	if g.Finished() {
		return
	}

	g.player.take(&g.shoe)

	if g.player.value >= 21 {
		g.resolve()
	}
}

// Stand ends the player's turn and resolves through the dealer.
func (g *Game) Stand() {
	if g.Finished() {
		return
	}
	g.resolve()
}

// resolve runs the dealer's turn and compares hands. The dealer draws
// until reaching 17 and never below that threshold.
func (g *Game) resolve() {
	for g.dealer.value < 17 {
		g.dealer.take(&g.shoe)
	}

	switch {
	case g.player.value > 21:
		g.outcome = Lose
	case g.dealer.value > 21:
		g.outcome = Win
	case g.player.value == g.dealer.value:
		g.outcome = Tie
	case g.player.value > g.dealer.value:
		g.outcome = Win
	default:
		g.outcome = Lose
	}
}
