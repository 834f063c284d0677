package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/jera/internal"
	"github.com/starford/jera/internal/pipeline"
	pkgconfig "github.com/starford/jera/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()

	if path := cmd.Root().String("config"); path != "" {
		if err := pkgconfig.Load(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		return cfg, nil
	}

	// Default location; an absent file just means defaults.
	if _, err := pkgconfig.LoadIfPresent(cfg.ConfigPath(), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runGenerate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	notes := cmd.StringSlice("notes")
	if args := cmd.Args().Slice(); len(args) > 0 {
		if len(notes) == 0 {
			return fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))
		}
		notes = append(notes, args...)
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithRequest(pipeline.Request{
			Notes: notes,
			Query: cmd.String("query"),
			Agent: cmd.String("agent"),
		}),
	}
	if cmd.IsSet("cards") {
		opts = append(opts, internal.WithCards(int(cmd.Int("cards"))))
	}
	if deck := cmd.String("deck"); deck != "" {
		opts = append(opts, internal.WithDeck(deck))
	}
	if cmd.IsSet("bias") {
		opts = append(opts, internal.WithBias(cmd.Float("bias")))
	}
	if folders := cmd.StringSlice("folders"); len(folders) > 0 {
		opts = append(opts, internal.WithFolders(folders))
	}
	if cmd.IsSet("deck-schema") {
		opts = append(opts, internal.WithDeckSchema(cmd.Bool("deck-schema")))
	}
	if cmd.Bool("verbose") {
		opts = append(opts, internal.WithVerbose(true))
	}

	return internal.Run(ctx, opts...)
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect and edit the configuration",
		Commands: []*cli.Command{
			{
				Name:  "where",
				Usage: "Print the config file location",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					internal.ConfigWhere(cfg, os.Stdout)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "Print the effective configuration as YAML",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.ConfigList(cfg, os.Stdout)
				},
			},
			{
				Name:      "get",
				Usage:     "Print one value by dotted key, e.g. anki.deck",
				ArgsUsage: "<key>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("usage: jera config get <key>")
					}
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.ConfigGet(cfg, cmd.Args().First(), os.Stdout)
				},
			},
			{
				Name:      "set",
				Usage:     "Set one value and write the config file",
				ArgsUsage: "<key> <value>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 2 {
						return fmt.Errorf("usage: jera config set <key> <value>")
					}
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.ConfigSet(cfg, cmd.Args().Get(0), cmd.Args().Get(1), os.Stdout)
				},
			},
			{
				Name:  "reset",
				Usage: "Delete the config file, restoring defaults",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.ConfigReset(cfg, os.Stdin, os.Stdout)
				},
			},
		},
	}
}

func tagCommand() *cli.Command {
	return &cli.Command{
		Name:  "tag",
		Usage: "Manage sampling tag weights and exclusions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Print tag weights and excluded tags",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					internal.TagList(cfg, os.Stdout)
					return nil
				},
			},
			{
				Name:      "add",
				Usage:     "Set a tag's sampling weight",
				ArgsUsage: "<tag> <weight>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 2 {
						return fmt.Errorf("usage: jera tag add <tag> <weight>")
					}
					weight, err := strconv.ParseFloat(cmd.Args().Get(1), 64)
					if err != nil {
						return fmt.Errorf("weight must be a number, got %q", cmd.Args().Get(1))
					}
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.TagAdd(cfg, cmd.Args().Get(0), weight, os.Stdout)
				},
			},
			{
				Name:      "remove",
				Usage:     "Drop a tag from the weight schema",
				ArgsUsage: "<tag>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("usage: jera tag remove <tag>")
					}
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.TagRemove(cfg, cmd.Args().First(), os.Stdout)
				},
			},
			{
				Name:      "exclude",
				Usage:     "Never sample notes carrying this tag",
				ArgsUsage: "<tag>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("usage: jera tag exclude <tag>")
					}
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.TagExclude(cfg, cmd.Args().First(), os.Stdout)
				},
			},
			{
				Name:      "include",
				Usage:     "Remove a tag from the exclusion list",
				ArgsUsage: "<tag>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("usage: jera tag include <tag>")
					}
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.TagInclude(cfg, cmd.Args().First(), os.Stdout)
				},
			},
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect and manage generation history",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Print aggregate history statistics",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.HistoryStats(cfg, os.Stdout)
				},
			},
			{
				Name:  "clear",
				Usage: "Delete all generation history",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.HistoryClear(cfg, os.Stdin, os.Stdout)
				},
			},
		},
	}
}

func deckCommand() *cli.Command {
	return &cli.Command{
		Name:  "deck",
		Usage: "Manage Anki decks",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List deck names",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "metadata",
						Aliases: []string{"m"},
						Usage:   "Show per-deck card counts",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.DeckList(ctx, cfg, cmd.Bool("metadata"), os.Stdout)
				},
			},
			{
				Name:      "rename",
				Usage:     "Move every card from one deck name to another",
				ArgsUsage: "<old> <new>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 2 {
						return fmt.Errorf("usage: jera deck rename <old> <new>")
					}
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.DeckRename(ctx, cfg, cmd.Args().Get(0), cmd.Args().Get(1), os.Stdout)
				},
			},
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve vault and generation tools over MCP stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return internal.RunMCP(
				internal.WithConfig(cfg),
				internal.WithVerbose(cmd.Root().Bool("verbose")),
			)
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "jera",
		Usage:   "Automated spaced repetition flashcards from your Obsidian vault",
		Version: "1.0.0",
		Action:  runGenerate,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to config file",
				Sources: cli.EnvVars("JERA_CONFIG_FILE"),
			},
			&cli.IntFlag{
				Name:    "cards",
				Aliases: []string{"c"},
				Usage:   "Maximum number of flashcards to create",
			},
			&cli.StringSliceFlag{
				Name:    "notes",
				Aliases: []string{"n"},
				Usage:   "Note names, glob patterns, or a count of notes to sample",
			},
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Topic to generate cards about, or extraction focus with --notes",
			},
			&cli.StringFlag{
				Name:    "agent",
				Aliases: []string{"a"},
				Usage:   "Natural language description of the notes to find",
			},
			&cli.StringFlag{
				Name:    "deck",
				Aliases: []string{"d"},
				Usage:   "Target Anki deck",
			},
			&cli.FloatFlag{
				Name:    "bias",
				Aliases: []string{"b"},
				Usage:   "Density bias strength from 0 to 1",
			},
			&cli.StringSliceFlag{
				Name:    "folders",
				Aliases: []string{"w"},
				Usage:   "Restrict vault lookups to these folders",
			},
			&cli.BoolFlag{
				Name:    "deck-schema",
				Aliases: []string{"u"},
				Usage:   "Sample existing deck cards as style examples",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			configCommand(),
			tagCommand(),
			historyCommand(),
			deckCommand(),
			mcpCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
