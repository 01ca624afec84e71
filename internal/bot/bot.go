// Package bot provides the Discord session setup, command
// registration and interaction routing.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"discord-casino-bot/internal/config"
	"discord-casino-bot/internal/handler"
	"discord-casino-bot/internal/service"
	"discord-casino-bot/internal/session"
)

// Bot wraps the discordgo session with application dependencies.
type Bot struct {
	dg         *discordgo.Session
	cfg        *config.Config
	dispatcher *Dispatcher
	presenter  *Presenter

	// Handlers
	accountHandler *handler.AccountHandler
	adminHandler   *handler.AdminHandler
	gameHandler    *handler.GameHandler

	registered []*discordgo.ApplicationCommand
}

// Dependencies holds everything the bot handlers need.
type Dependencies struct {
	Config     *config.Config
	Economy    *service.EconomyService
	Controller *session.Controller
	Dispatcher *Dispatcher
}

// commands are the slash commands the bot registers on startup.
var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "balance",
		Description: "Show your coin balance",
	},
	{
		Name:        "top",
		Description: "Show the richest players",
	},
	{
		Name:        "history",
		Description: "Show your recent transactions",
	},
	{
		Name:        "send",
		Description: "Send coins to another player",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "Who receives the coins",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "amount",
				Description: "How many coins to send",
				Required:    true,
				MinValue:    float64Ptr(1),
			},
		},
	},
	{
		Name:        "duel",
		Description: "Challenge someone to rock, paper, scissors",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "choice",
				Description: "Your hidden choice",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Rock", Value: "rock"},
					{Name: "Paper", Value: "paper"},
					{Name: "Scissors", Value: "scissors"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "opponent",
				Description: "Who to challenge; leave empty to play the house",
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "bet",
				Description: "Coins each side wagers; 0 for a friendly duel",
				MinValue:    float64Ptr(0),
			},
		},
	},
	{
		Name:        "blackjack",
		Description: "Play a round of blackjack against the dealer",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "bet",
				Description: "Coins to wager",
				Required:    true,
				MinValue:    float64Ptr(1),
			},
		},
	},
	{
		Name:        "coins",
		Description: "Administer player balances",
		Options: []*discordgo.ApplicationCommandOption{
			adminSubcommand("add", "Credit a player"),
			adminSubcommand("subtract", "Debit a player"),
			adminSubcommand("set", "Pin a player's balance"),
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "reset",
				Description: "Return a player to the starting balance",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "The player",
						Required:    true,
					},
				},
			},
		},
	},
}

func adminSubcommand(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "The player",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "amount",
				Description: "The amount",
				Required:    true,
			},
		},
	}
}

func float64Ptr(v float64) *float64 { return &v }

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	dg, err := discordgo.New("Bot " + deps.Config.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	b := &Bot{
		dg:         dg,
		cfg:        deps.Config,
		dispatcher: deps.Dispatcher,
		presenter:  NewPresenter(dg),
	}

	b.accountHandler = handler.NewAccountHandler(deps.Economy)
	b.adminHandler = handler.NewAdminHandler(deps.Economy, deps.Config)
	b.gameHandler = handler.NewGameHandler(deps.Controller, deps.Economy, b.dispatcher, b.presenter)

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onInteraction)

	return b, nil
}

// Presenter exposes the bot's render sink for wiring into the session
// controller.
func (b *Bot) Presenter() *Presenter {
	return b.presenter
}

// Start opens the gateway connection and registers the slash commands.
func (b *Bot) Start(ctx context.Context) error {
	log.Info().Msg("Starting bot...")

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	for _, cmd := range commands {
		registered, err := b.dg.ApplicationCommandCreate(b.dg.State.User.ID, "", cmd)
		if err != nil {
			return fmt.Errorf("failed to register command %q: %w", cmd.Name, err)
		}
		b.registered = append(b.registered, registered)
	}
	log.Info().Int("commands", len(b.registered)).Msg("Bot started")

	<-ctx.Done()
	return nil
}

// Stop deregisters commands and closes the gateway connection.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	for _, cmd := range b.registered {
		if err := b.dg.ApplicationCommandDelete(b.dg.State.User.ID, "", cmd.ID); err != nil {
			log.Warn().Err(err).Str("command", cmd.Name).Msg("failed to delete command")
		}
	}
	if err := b.dg.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close gateway")
	}
	log.Info().Msg("Bot stopped")
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	log.Info().
		Str("username", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("Gateway ready")
}

// onInteraction routes slash commands and button presses.
func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.onCommand(ctx, s, i)
	case discordgo.InteractionMessageComponent:
		b.onComponent(s, i)
	}
}

func (b *Bot) onCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	start := time.Now()
	defer func() {
		log.Debug().
			Str("command", name).
			Dur("elapsed", time.Since(start)).
			Msg("command handled")
	}()

	switch name {
	case "balance":
		b.accountHandler.Balance(ctx, s, i)
	case "top":
		b.accountHandler.Top(ctx, s, i)
	case "history":
		b.accountHandler.History(ctx, s, i)
	case "send":
		b.accountHandler.Send(ctx, s, i)
	case "duel":
		b.gameHandler.Duel(ctx, s, i)
	case "blackjack":
		b.gameHandler.Blackjack(ctx, s, i)
	case "coins":
		b.adminHandler.Coins(ctx, s, i)
	default:
		log.Warn().Str("command", name).Msg("unknown command")
	}
}

// onComponent acknowledges a button press and forwards it to the
// session it belongs to.
func (b *Bot) onComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sessionID, action, ok := splitCustomID(i.MessageComponentData().CustomID)
	if !ok {
		return
	}

	var user *discordgo.User
	if i.Member != nil {
		user = i.Member.User
	} else {
		user = i.User
	}
	userID, err := strconv.ParseInt(user.ID, 10, 64)
	if err != nil {
		return
	}

	// Ack first so Discord does not flag the press as failed.
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to ack component press")
	}

	delivered := b.dispatcher.Dispatch(&session.Event{
		SessionID: sessionID,
		UserID:    userID,
		Action:    action,
	})
	if !delivered {
		log.Debug().
			Str("session_id", sessionID).
			Str("action", action).
			Msg("press for finished session dropped")
	}
}
