package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"discord-casino-bot/internal/config"
	"discord-casino-bot/internal/model"
	"discord-casino-bot/internal/service"
)

// AdminHandler serves the /coins admin command group.
type AdminHandler struct {
	economy *service.EconomyService
	cfg     *config.Config
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(economy *service.EconomyService, cfg *config.Config) *AdminHandler {
	return &AdminHandler{economy: economy, cfg: cfg}
}

// Coins handles /coins add|subtract|set|reset.
func (h *AdminHandler) Coins(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	callerID, err := parseUserID(interactionUser(i).ID)
	if err != nil {
		respondError(s, i, "Could not identify you")
		return
	}
	if !h.cfg.IsAdmin(callerID) {
		respondError(s, i, "Only administrators can do that")
		return
	}

	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		respondError(s, i, "Missing subcommand")
		return
	}
	sub := data.Options[0]
	opts := optionMap(sub.Options)

	target := opts["user"].UserValue(s)
	if target == nil {
		respondError(s, i, "Pick a user")
		return
	}
	targetID, err := parseUserID(target.ID)
	if err != nil {
		respondError(s, i, "Could not identify the target user")
		return
	}
	var account *model.Account
	switch sub.Name {
	case "add":
		account, err = h.economy.AddCoins(ctx, targetID, opts["amount"].IntValue())
	case "subtract":
		account, err = h.economy.SubtractCoins(ctx, targetID, opts["amount"].IntValue())
	case "set":
		account, err = h.economy.SetCoins(ctx, targetID, opts["amount"].IntValue())
	case "reset":
		account, err = h.economy.Reset(ctx, targetID)
	default:
		respondError(s, i, "Unknown subcommand")
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		respondError(s, i, "Invalid amount")
	case err != nil:
		log.Error().Err(err).
			Int64("admin", callerID).
			Int64("target", targetID).
			Str("op", sub.Name).
			Msg("admin balance operation failed")
		respondError(s, i, "Could not update the balance")
	default:
		respond(s, i, fmt.Sprintf("<@%d> now has **%d** coins", targetID, account.Coins), false)
	}
}
