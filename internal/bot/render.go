package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"discord-casino-bot/internal/session"
)

const embedColor = 0x2ecc71

// customID builds the component custom ID a button press comes back
// with: "<sessionID>:<action>".
func customID(sessionID, action string) string {
	return sessionID + ":" + action
}

// splitCustomID is the inverse of customID.
func splitCustomID(id string) (sessionID, action string, ok bool) {
	return strings.Cut(id, ":")
}

// buildEmbed turns a session render into a Discord embed.
func buildEmbed(r *session.Render) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       r.Title,
		Description: r.Description,
		Color:       embedColor,
	}
	for _, f := range r.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: true,
		})
	}
	if r.Payout != nil {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Pot: %d coins", *r.Payout),
		}
	}
	return embed
}

// buildComponents turns a render's offered actions into a button row.
// A terminal render has no actions and gets no components.
func buildComponents(sessionID string, r *session.Render) []discordgo.MessageComponent {
	if r.Done || len(r.Actions) == 0 {
		return nil
	}

	buttons := make([]discordgo.MessageComponent, 0, len(r.Actions))
	for _, action := range r.Actions {
		buttons = append(buttons, discordgo.Button{
			Label:    actionLabel(action),
			Style:    actionStyle(action),
			CustomID: customID(sessionID, action),
		})
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: buttons},
	}
}

func actionLabel(action string) string {
	switch action {
	case "rock":
		return "🪨 Rock"
	case "paper":
		return "📄 Paper"
	case "scissors":
		return "✂️ Scissors"
	case "hit":
		return "🃏 Hit"
	case "stand":
		return "🛑 Stand"
	default:
		return action
	}
}

func actionStyle(action string) discordgo.ButtonStyle {
	switch action {
	case "hit":
		return discordgo.SuccessButton
	case "stand":
		return discordgo.DangerButton
	default:
		return discordgo.SecondaryButton
	}
}
