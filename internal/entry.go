// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/jera/internal/agent"
	"github.com/starford/jera/internal/anki"
	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/console"
	"github.com/starford/jera/internal/ledger"
	"github.com/starford/jera/internal/mcpserver"
	"github.com/starford/jera/internal/obsidian"
	"github.com/starford/jera/internal/oracle"
	"github.com/starford/jera/internal/pipeline"
	"github.com/starford/jera/internal/sampling"
)

// Run executes one flashcard generation run with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts...)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config
	applyOverrides(cfg, app)

	logger := newLogger(cfg, app.verbose)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("vault_url", cfg.Vault.URL),
		slog.String("anki_url", cfg.Anki.URL),
		slog.String("deck", cfg.Anki.Deck),
		slog.String("oracle", cfg.Oracle.Provider),
		slog.String("state_dir", cfg.StateDir()))

	// Initialize store clients.
	store := obsidian.NewClient(obsidian.Config{
		BaseURL:  cfg.Vault.URL,
		APIKey:   cfg.Vault.ResolveAPIKey(),
		Timeout:  cfg.Vault.Timeout(),
		Insecure: cfg.Vault.Insecure,
	})
	cards := anki.NewClient(anki.Config{
		URL:     cfg.Anki.URL,
		Timeout: cfg.Anki.Timeout(),
	})

	orc := app.oracle
	if orc == nil {
		var err error
		orc, err = oracle.New(oracle.Config{
			Provider:  cfg.Oracle.Provider,
			Model:     cfg.Oracle.Model,
			APIKey:    cfg.Oracle.ResolveAPIKey(),
			BaseURL:   cfg.Oracle.BaseURL,
			MaxTokens: cfg.Oracle.MaxTokens,
			Timeout:   cfg.Oracle.Timeout(),
		})
		if err != nil {
			return fmt.Errorf("init oracle: %w", err)
		}
	}

	// Load per-user state. A broken history file disables dedup and
	// density bias for this run instead of blocking it.
	var history pipeline.History
	led, err := ledger.Load(cfg.HistoryPath())
	if err != nil {
		logger.Warn("history unavailable, dedup and density bias disabled",
			slog.String("error", err.Error()))
	} else {
		history = led
	}
	schema := sampling.LoadSchema(cfg.SchemaPath())

	ui := console.New(app.stdin, app.stdout)
	finder := agent.New(orc, store, agent.Config{
		Folders:      cfg.Vault.Folders,
		ExcludedTags: schema.Excluded,
	}, logger)

	pipe, err := pipeline.New(pipelineConfig(cfg, app, schema), pipeline.Deps{
		Store:   store,
		Cards:   cards,
		Oracle:  orc,
		Finder:  finder,
		History: history,
		Schema:  schema,
		UI:      ui,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	sess, err := pipe.Run(ctx, app.request)
	if err != nil {
		// No matching notes is a clean exit, not a failure.
		if errors.Is(err, apperr.ErrNotFound) {
			ui.Printf("ERROR: %v\n", err)
			return nil
		}
		return err
	}

	logger.Info("Run finished",
		slog.Int("notes_processed", sess.NotesProcessed),
		slog.Int("cards_generated", sess.CardsGenerated),
		slog.Int("cards_inserted", sess.CardsInserted),
		slog.Int("notes_skipped", sess.NotesSkipped),
		slog.Int("warnings", len(sess.Errors)))
	return nil
}

// RunMCP serves the vault, sampling and generation tools over MCP stdio
// until the client disconnects.
func RunMCP(opts ...Option) error {
	app := newApplication(opts...)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(cfg, app.verbose)
	slog.SetDefault(logger)

	store := obsidian.NewClient(obsidian.Config{
		BaseURL:  cfg.Vault.URL,
		APIKey:   cfg.Vault.ResolveAPIKey(),
		Timeout:  cfg.Vault.Timeout(),
		Insecure: cfg.Vault.Insecure,
	})

	orc := app.oracle
	if orc == nil {
		var err error
		orc, err = oracle.New(oracle.Config{
			Provider:  cfg.Oracle.Provider,
			Model:     cfg.Oracle.Model,
			APIKey:    cfg.Oracle.ResolveAPIKey(),
			BaseURL:   cfg.Oracle.BaseURL,
			MaxTokens: cfg.Oracle.MaxTokens,
			Timeout:   cfg.Oracle.Timeout(),
		})
		if err != nil {
			return fmt.Errorf("init oracle: %w", err)
		}
	}

	led, err := ledger.Load(cfg.HistoryPath())
	if err != nil {
		logger.Warn("history unavailable", slog.String("error", err.Error()))
		led = nil
	}
	schema := sampling.LoadSchema(cfg.SchemaPath())

	srv := mcpserver.New(store, orc, led, schema, mcpserver.Config{
		Folders:      cfg.Vault.Folders,
		DaysOld:      cfg.Sampling.DaysOld,
		MinNoteSize:  cfg.Sampling.MinNoteSize,
		BiasStrength: cfg.Sampling.BiasStrength,
	})

	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// newLogger builds the process-wide JSON logger. Logs go to stderr so
// they never interleave with interactive output or the MCP protocol on
// stdout.
func newLogger(cfg *Config, verbose bool) *slog.Logger {
	level := cfg.App.Level()
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// applyOverrides merges command line flags into the loaded configuration.
func applyOverrides(cfg *Config, app *application) {
	if app.cardsSet {
		cfg.Behavior.MaxCards = app.cards
	}
	if app.deck != "" {
		cfg.Anki.Deck = app.deck
	}
	if app.biasSet {
		cfg.Sampling.BiasStrength = app.bias
	}
	if len(app.folders) > 0 {
		cfg.Vault.Folders = append(cfg.Vault.Folders, app.folders...)
	}
	if app.deckSchemaSet {
		cfg.Behavior.UseDeckSchema = app.deckSchema
	}
}

func pipelineConfig(cfg *Config, app *application, schema *sampling.Schema) pipeline.Config {
	return pipeline.Config{
		Deck:           cfg.Anki.Deck,
		CardType:       cfg.Anki.CardType,
		MaxCards:       cfg.Behavior.MaxCards,
		CardsSet:       app.cardsSet,
		NotesToSample:  cfg.Sampling.NotesToSample,
		DaysOld:        cfg.Sampling.DaysOld,
		MinNoteSize:    cfg.Sampling.MinNoteSize,
		ApproveNotes:   cfg.Behavior.ApproveNotes,
		ApproveCards:   cfg.Behavior.ApproveCards,
		DedupHistory:   cfg.Behavior.DedupHistory,
		DedupDeck:      cfg.Behavior.DedupDeck,
		UseDeckSchema:  cfg.Behavior.UseDeckSchema,
		Batching:       cfg.Batch.Enabled,
		BatchSizeLimit: cfg.Batch.SizeLimit,
		BatchCardLimit: cfg.Batch.CardLimit,
		Workers:        cfg.Batch.Workers,
		BiasStrength:   cfg.Sampling.BiasStrength,
		Folders:        cfg.Vault.Folders,
		ExcludedTags:   schema.Excluded,
		Highlight:      cfg.Behavior.Highlight,
	}
}
