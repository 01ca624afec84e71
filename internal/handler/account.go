package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"discord-casino-bot/internal/model"
	"discord-casino-bot/internal/service"
)

// AccountHandler serves the balance, leaderboard, history and transfer
// commands.
type AccountHandler struct {
	economy *service.EconomyService
}

// NewAccountHandler creates a new AccountHandler instance.
func NewAccountHandler(economy *service.EconomyService) *AccountHandler {
	return &AccountHandler{economy: economy}
}

// Balance handles /balance.
func (h *AccountHandler) Balance(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, err := parseUserID(interactionUser(i).ID)
	if err != nil {
		respondError(s, i, "Could not identify you")
		return
	}

	account, status, err := h.economy.Balance(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("balance lookup failed")
		respondError(s, i, "Could not fetch your balance")
		return
	}

	respondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "Balance",
		Description: fmt.Sprintf("<@%d> has **%d** coins %s", userID, account.Coins, status.Emoji()),
	})
}

// Top handles /top.
func (h *AccountHandler) Top(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	accounts, err := h.economy.TopAccounts(ctx, 10)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard lookup failed")
		respondError(s, i, "Could not fetch the leaderboard")
		return
	}
	if len(accounts) == 0 {
		respond(s, i, "Nobody has any coins yet", false)
		return
	}

	var b strings.Builder
	for rank, account := range accounts {
		fmt.Fprintf(&b, "%d. <@%d> — %d coins\n", rank+1, account.UserID, account.Coins)
	}
	respondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "🏆 Richest players",
		Description: b.String(),
	})
}

// History handles /history.
func (h *AccountHandler) History(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, err := parseUserID(interactionUser(i).ID)
	if err != nil {
		respondError(s, i, "Could not identify you")
		return
	}

	txs, err := h.economy.History(ctx, userID, 10)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("history lookup failed")
		respondError(s, i, "Could not fetch your history")
		return
	}
	if len(txs) == 0 {
		respond(s, i, "No transactions yet", true)
		return
	}

	var b strings.Builder
	for _, tx := range txs {
		fmt.Fprintf(&b, "%+d (%s)\n", tx.Amount, tx.Type)
	}
	respondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "Recent transactions",
		Description: b.String(),
	})
}

// Send handles /send.
func (h *AccountHandler) Send(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)

	fromID, err := parseUserID(interactionUser(i).ID)
	if err != nil {
		respondError(s, i, "Could not identify you")
		return
	}

	target := opts["user"].UserValue(s)
	if target == nil {
		respondError(s, i, "Pick a recipient")
		return
	}
	if target.Bot {
		respondError(s, i, "Bots have no use for coins")
		return
	}
	toID, err := parseUserID(target.ID)
	if err != nil {
		respondError(s, i, "Could not identify the recipient")
		return
	}
	amount := opts["amount"].IntValue()

	// The recipient may never have played; open their account first so
	// the transfer has somewhere to land.
	if _, err := h.economy.EnsureAccount(ctx, toID); err != nil {
		log.Error().Err(err).Int64("user_id", toID).Msg("failed to open recipient account")
		respondError(s, i, "Could not complete the transfer")
		return
	}

	err = h.economy.Send(ctx, fromID, toID, amount)
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		respondError(s, i, "The amount must be positive")
	case errors.Is(err, service.ErrSelfTransfer):
		respondError(s, i, "You cannot send coins to yourself")
	case errors.Is(err, model.ErrInsufficientFunds):
		respondError(s, i, "You do not have that many coins")
	case err != nil:
		log.Error().Err(err).Int64("from", fromID).Int64("to", toID).Msg("transfer failed")
		respondError(s, i, "Could not complete the transfer")
	default:
		respond(s, i, fmt.Sprintf("💸 <@%d> sent **%d** coins to <@%d>", fromID, amount, toID), false)
	}
}
