// Package handler implements the Discord-facing command handlers.
package handler

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// interactionUser returns the invoking user for both guild and DM
// interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

// parseUserID converts a Discord snowflake string into the int64 the
// ledger keys accounts by.
func parseUserID(discordID string) (int64, error) {
	return strconv.ParseInt(discordID, 10, 64)
}

// optionMap indexes a command's options by name.
func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// respond answers an interaction with a plain text message.
func respond(s *discordgo.Session, i *discordgo.InteractionCreate, text string, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   flags,
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to respond to interaction")
	}
}

// respondEmbed answers an interaction with an embed.
func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to respond to interaction")
	}
}

// respondError tells the user something went wrong without leaking the
// underlying error.
func respondError(s *discordgo.Session, i *discordgo.InteractionCreate, text string) {
	respond(s, i, fmt.Sprintf("❌ %s", text), true)
}
