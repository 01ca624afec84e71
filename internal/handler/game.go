package handler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"discord-casino-bot/internal/game/duel"
	"discord-casino-bot/internal/model"
	"discord-casino-bot/internal/service"
	"discord-casino-bot/internal/session"
)

// SessionHub registers running game sessions so their button presses
// can be routed back to them.
type SessionHub interface {
	Register(sessionID string) func()
}

// ChannelBinder ties a session's output to a Discord channel.
type ChannelBinder interface {
	Bind(sessionID, channelID string) func()
}

// GameHandler starts duel and blackjack sessions from slash commands.
// Each session runs on its own goroutine; a panic inside one unwinds
// through the escrow guard, which refunds whatever was debited.
type GameHandler struct {
	controller *session.Controller
	economy    *service.EconomyService
	hub        SessionHub
	binder     ChannelBinder
}

// NewGameHandler creates a new GameHandler instance.
func NewGameHandler(controller *session.Controller, economy *service.EconomyService, hub SessionHub, binder ChannelBinder) *GameHandler {
	return &GameHandler{
		controller: controller,
		economy:    economy,
		hub:        hub,
		binder:     binder,
	}
}

// Duel handles /duel.
func (h *GameHandler) Duel(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)

	challengerID, err := parseUserID(interactionUser(i).ID)
	if err != nil {
		respondError(s, i, "Could not identify you")
		return
	}

	choice := duel.ParseChoice(opts["choice"].StringValue())
	var bet int64
	if opt, ok := opts["bet"]; ok {
		bet = opt.IntValue()
	}
	if bet < 0 {
		respondError(s, i, "The bet cannot be negative")
		return
	}

	// No opponent, or a bot opponent, means playing against the house.
	botOpponent := true
	var opponentID int64
	if opt, ok := opts["opponent"]; ok {
		opponent := opt.UserValue(s)
		if opponent != nil && !opponent.Bot {
			botOpponent = false
			opponentID, err = parseUserID(opponent.ID)
			if err != nil {
				respondError(s, i, "Could not identify your opponent")
				return
			}
		}
	}
	if !botOpponent && opponentID == challengerID {
		respondError(s, i, "You cannot duel yourself")
		return
	}

	if _, err := h.economy.EnsureAccount(ctx, challengerID); err != nil {
		log.Error().Err(err).Int64("user_id", challengerID).Msg("failed to open account")
		respondError(s, i, "Could not start the duel")
		return
	}
	if !botOpponent {
		if _, err := h.economy.EnsureAccount(ctx, opponentID); err != nil {
			log.Error().Err(err).Int64("user_id", opponentID).Msg("failed to open account")
			respondError(s, i, "Could not start the duel")
			return
		}
	}

	respond(s, i, "⚔️ Duel starting...", true)

	sessionID := i.ID
	unregister := h.hub.Register(sessionID)
	unbind := h.binder.Bind(sessionID, i.ChannelID)

	go func() {
		defer unregister()
		defer unbind()
		defer h.recoverSession(sessionID, "duel")

		_, err := h.controller.RunDuel(context.Background(), sessionID, challengerID, opponentID, botOpponent, choice, bet)
		if err != nil {
			h.failSession(err, sessionID, "duel")
		}
	}()
}

// Blackjack handles /blackjack.
func (h *GameHandler) Blackjack(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)

	playerID, err := parseUserID(interactionUser(i).ID)
	if err != nil {
		respondError(s, i, "Could not identify you")
		return
	}
	bet := opts["bet"].IntValue()
	if bet <= 0 {
		respondError(s, i, "The bet must be positive")
		return
	}

	if _, err := h.economy.EnsureAccount(ctx, playerID); err != nil {
		log.Error().Err(err).Int64("user_id", playerID).Msg("failed to open account")
		respondError(s, i, "Could not start the game")
		return
	}

	respond(s, i, "🃏 Dealing you in...", true)

	sessionID := i.ID
	unregister := h.hub.Register(sessionID)
	unbind := h.binder.Bind(sessionID, i.ChannelID)

	go func() {
		defer unregister()
		defer unbind()
		defer h.recoverSession(sessionID, "blackjack")

		_, err := h.controller.RunBlackjack(context.Background(), sessionID, playerID, bet)
		if err != nil {
			h.failSession(err, sessionID, "blackjack")
		}
	}()
}

// recoverSession keeps a panicking game session from taking the whole
// bot down. By the time it runs the escrow guard has already refunded
// any tracked debits, so what is left is telling the player the game
// ended.
func (h *GameHandler) recoverSession(sessionID, game string) {
	if r := recover(); r != nil {
		log.Error().
			Str("session_id", sessionID).
			Str("game", game).
			Str("panic", fmt.Sprint(r)).
			Bytes("stack", debug.Stack()).
			Msg("game session panicked")
		h.controller.Abort(context.Background(), sessionID)
	}
}

// failSession reports an abnormal session end to the player. Player
// rejections were already surfaced as notices and only get logged.
func (h *GameHandler) failSession(err error, sessionID, game string) {
	if errors.Is(err, session.ErrInvalidBet) ||
		errors.Is(err, session.ErrSelfChallenge) ||
		errors.Is(err, model.ErrInsufficientFunds) {
		log.Debug().Err(err).Str("session_id", sessionID).Str("game", game).Msg("session rejected")
		return
	}
	log.Error().Err(err).Str("session_id", sessionID).Str("game", game).Msg("session failed")
	h.controller.Abort(context.Background(), sessionID)
}
