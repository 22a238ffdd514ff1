package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notelog/internal"
	"github.com/starford/notelog/internal/apperr"
	"github.com/starford/notelog/internal/mcpserver"
	"github.com/starford/notelog/internal/models"
	"github.com/starford/notelog/internal/parser"
	pkgconfig "github.com/starford/notelog/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")
	if configPath == "" {
		found, err := pkgconfig.Locate()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrConfig, err)
		}
		configPath = found
	}

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w: %w", apperr.ErrConfig, err)
	}
	return cfg, nil
}

// withApp wires the configured backends for a one-shot command. Logs go to
// stderr so stdout carries only command output.
func withApp(fn func(ctx context.Context, cmd *cli.Command, app *internal.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel)
		slog.SetDefault(logger)

		app, err := internal.Build(ctx, internal.WithConfig(cfg), internal.WithLogger(logger))
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				logger.Error("close backends", slog.String("error", err.Error()))
			}
		}()
		return fn(ctx, cmd, app)
	}
}

func parseTimestamp(s string) (int64, error) {
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts < 0 {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, apperr.ErrInvalid)
	}
	return ts, nil
}

func printNotes(notes []models.Note) {
	for _, n := range notes {
		fmt.Printf("%d\t%s\n", n.Timestamp, parser.FormatLine(n.Timestamp, n.Text))
	}
}

func add(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	text := strings.Join(cmd.Args().Slice(), " ")
	ts, err := app.Service.Add(ctx, text)
	if err != nil {
		return err
	}
	fmt.Println(ts)
	return nil
}

func find(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	notes, err := app.Service.Find(ctx, cmd.Args().Slice())
	if err != nil {
		return err
	}
	printNotes(notes)
	return nil
}

func remove(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("delete takes exactly one timestamp: %w", apperr.ErrInvalid)
	}
	ts, err := parseTimestamp(cmd.Args().First())
	if err != nil {
		return err
	}
	return app.Service.Delete(ctx, ts)
}

func update(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	args := cmd.Args().Slice()
	if len(args) < 3 {
		return fmt.Errorf("update needs <old-ts> <new-ts> <text>: %w", apperr.ErrInvalid)
	}
	oldTS, err := parseTimestamp(args[0])
	if err != nil {
		return err
	}
	newTS, err := parseTimestamp(args[1])
	if err != nil {
		return err
	}
	stored, err := app.Service.Update(ctx, oldTS, newTS, strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	fmt.Println(stored)
	return nil
}

func words(ctx context.Context, _ *cli.Command, app *internal.App) error {
	list, err := app.Service.Words(ctx)
	if err != nil {
		return err
	}
	for _, w := range list {
		fmt.Println(w)
	}
	return nil
}

func migrate(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("migrate needs <src> <dst>: %w", apperr.ErrInvalid)
	}
	_, err := app.Migrate(ctx, cmd.Args().Get(0), cmd.Args().Get(1), func(i, n int, note models.Note) {
		fmt.Printf("%d/%d - [%s] %s\n", i, n, parser.FormatTimestamp(note.Timestamp), note.Text)
	})
	return err
}

func restore(ctx context.Context, _ *cli.Command, app *internal.App) error {
	return app.Restore(ctx)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(_ context.Context, _ *cli.Command, app *internal.App) error {
	return mcpserver.New(app.Service, version).ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:    "notelog",
		Usage:   "Timestamped one-line notes kept in a flat file and an indexed key-value store",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default: notes-local.yaml, then notes.yaml)",
				Sources: cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Capture a note at the current second",
				ArgsUsage: "<text>",
				Action:    withApp(add),
			},
			{
				Name:      "find",
				Usage:     "Search notes; prefix a term with ! to exclude it",
				ArgsUsage: "[term...]",
				Action:    withApp(find),
			},
			{
				Name:      "delete",
				Usage:     "Delete the note at a timestamp",
				ArgsUsage: "<ts>",
				Action:    withApp(remove),
			},
			{
				Name:      "update",
				Usage:     "Replace a note",
				ArgsUsage: "<old-ts> <new-ts> <text>",
				Action:    withApp(update),
			},
			{
				Name:   "words",
				Usage:  "List the auto-completion vocabulary",
				Action: withApp(words),
			},
			{
				Name:      "migrate",
				Usage:     "Copy every note from one backend into another",
				ArgsUsage: "<src> <dst>",
				Action:    withApp(migrate),
			},
			{
				Name:   "restore",
				Usage:  "Restore the notes file from its backup",
				Action: withApp(restore),
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: withApp(serveMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		if errors.Is(err, apperr.ErrConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
