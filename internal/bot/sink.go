package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"discord-casino-bot/internal/session"
)

// Presenter renders session state into Discord messages. Each session
// is bound to the channel it started in; the first render sends a
// message and later renders edit it in place.
type Presenter struct {
	s *discordgo.Session

	mu       sync.Mutex
	channels map[string]string // sessionID -> channel ID
	messages map[string]string // sessionID -> rendered message ID
}

// NewPresenter creates a Presenter on top of a Discord session.
func NewPresenter(s *discordgo.Session) *Presenter {
	return &Presenter{
		s:        s,
		channels: make(map[string]string),
		messages: make(map[string]string),
	}
}

// Bind ties a session to the channel its output goes to. The returned
// cancel must be called when the session ends.
func (p *Presenter) Bind(sessionID, channelID string) func() {
	p.mu.Lock()
	p.channels[sessionID] = channelID
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.channels, sessionID)
		delete(p.messages, sessionID)
		p.mu.Unlock()
	}
}

// Present sends or updates the session's message.
func (p *Presenter) Present(_ context.Context, sessionID string, r *session.Render) error {
	p.mu.Lock()
	channelID, bound := p.channels[sessionID]
	messageID := p.messages[sessionID]
	p.mu.Unlock()
	if !bound {
		return fmt.Errorf("present %s: %w", sessionID, ErrUnknownSession)
	}

	embed := buildEmbed(r)
	components := buildComponents(sessionID, r)

	if messageID == "" {
		msg, err := p.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		})
		if err != nil {
			return fmt.Errorf("send render: %w", err)
		}
		p.mu.Lock()
		p.messages[sessionID] = msg.ID
		p.mu.Unlock()
		return nil
	}

	_, err := p.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &components,
	})
	if err != nil {
		return fmt.Errorf("edit render: %w", err)
	}
	return nil
}

// Notice pings one user in the session's channel without disturbing
// the rendered game message.
func (p *Presenter) Notice(_ context.Context, sessionID string, userID int64, text string) error {
	p.mu.Lock()
	channelID, bound := p.channels[sessionID]
	p.mu.Unlock()
	if !bound {
		return fmt.Errorf("notice %s: %w", sessionID, ErrUnknownSession)
	}

	_, err := p.s.ChannelMessageSend(channelID, fmt.Sprintf("<@%d> %s", userID, text))
	if err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	return nil
}
