// Package main is the entry point for the Discord casino bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"discord-casino-bot/internal/bot"
	"discord-casino-bot/internal/config"
	"discord-casino-bot/internal/pkg/db"
	"discord-casino-bot/internal/pkg/lock"
	"discord-casino-bot/internal/repository"
	"discord-casino-bot/internal/service"
	"discord-casino-bot/internal/session"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(dbPool.Pool, cfg.Economy.InitialCoins)
	txRepo := repository.NewTransactionRepository(dbPool.Pool)

	// Initialize services
	economyService := service.NewEconomyService(accountRepo, txRepo)

	// Initialize account lock
	accountLock := lock.NewAccountLock()

	// Initialize the game session plumbing
	dispatcher := bot.NewDispatcher()

	deps := &bot.Dependencies{
		Config:     cfg,
		Economy:    economyService,
		Dispatcher: dispatcher,
	}

	// The controller needs the bot's presenter and the bot needs the
	// controller's handlers, so the controller is wired in after the
	// bot is constructed.
	discordBot, err := buildBot(deps, accountRepo, accountLock, economyService, dispatcher, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Periodically verify the database is still reachable so an
	// outage shows up in the logs before a player hits it.
	go monitorDatabase(ctx, dbPool)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- discordBot.Start(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			log.Error().Err(err).Msg("Bot exited with error")
		}
	}

	cancel()
	discordBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// buildBot wires the session controller and the bot together.
func buildBot(
	deps *bot.Dependencies,
	accountRepo *repository.AccountRepository,
	accountLock *lock.AccountLock,
	economyService *service.EconomyService,
	dispatcher *bot.Dispatcher,
	cfg *config.Config,
) (*bot.Bot, error) {
	controller := session.NewController(accountRepo, dispatcher, nil, accountLock, session.Config{
		MaxBet:           cfg.Games.MaxBet,
		DuelTimeout:      cfg.Games.Duel.Timeout,
		BlackjackTimeout: cfg.Games.Blackjack.Timeout,
		BlackjackDecks:   cfg.Games.Blackjack.Decks,
	})
	controller.SetRecorder(economyService)
	deps.Controller = controller

	discordBot, err := bot.New(deps)
	if err != nil {
		return nil, err
	}
	controller.SetSink(discordBot.Presenter())
	return discordBot, nil
}

// monitorDatabase pings the database once a minute until ctx is done.
func monitorDatabase(ctx context.Context, pool *db.Pool) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := pool.HealthCheck(checkCtx); err != nil {
				log.Error().Err(err).Msg("Database health check failed")
			}
			cancel()
		}
	}
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create accounts table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			user_id BIGINT PRIMARY KEY,
			coins BIGINT NOT NULL DEFAULT 1000 CHECK (coins >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_coins ON accounts(coins DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: accounts table created")

	// Migration 2: Create transactions table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES accounts(user_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_transactions_type_time ON transactions(type, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: transactions table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
