package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/jdt/internal"
	"github.com/starford/jdt/internal/format"
	"github.com/starford/jdt/internal/journalservice"
	pkgconfig "github.com/starford/jdt/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

// stderrLogger is used by commands whose stdout carries their output.
func stderrLogger(cfg *internal.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func report(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if token := cmd.String("token"); token != "" {
		cfg.GitHub.Token = token
	}

	q := journalservice.Query{
		RepoURL:      cmd.String("repo"),
		Branch:       cmd.String("branch"),
		Since:        cmd.String("since"),
		StrictBranch: cmd.Bool("strict-branch"),
	}
	return internal.RunReport(ctx, q, cmd.String("format"),
		internal.WithConfig(cfg),
		internal.WithLogger(stderrLogger(cfg)),
		internal.WithOutput(os.Stdout),
	)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithLogger(stderrLogger(cfg)),
		internal.WithVersion(version),
	)
}

func main() {
	cmd := &cli.Command{
		Name:    "jdt",
		Usage:   "Work journal built from commit messages, with hand-written corrections",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Action: serve,
			},
			{
				Name:   "report",
				Usage:  "Print the journal of a repository",
				Action: report,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "repo",
						Aliases: []string{"r"},
						Usage:   "Repository URL (defaults to journal.repo_url)",
						Sources: cli.EnvVars("DEFAULT_REPO_URL"),
					},
					&cli.StringFlag{
						Name:    "branch",
						Aliases: []string{"b"},
						Usage:   "Branch (defaults to journal.branch)",
						Sources: cli.EnvVars("DEFAULT_BRANCH"),
					},
					&cli.StringFlag{
						Name:    "since",
						Usage:   "Only commits after this date (YYYY-MM-DD)",
						Sources: cli.EnvVars("JOURNAL_START_DATE"),
					},
					&cli.StringFlag{
						Name:    "token",
						Aliases: []string{"p"},
						Usage:   "GitHub token for private repositories",
						Sources: cli.EnvVars("GITHUB_TOKEN"),
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: " + strings.Join(format.Names, ", "),
						Value:   format.Text,
					},
					&cli.BoolFlag{
						Name:  "strict-branch",
						Usage: "Fail when the branch does not exist instead of using the first one",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve journal tools over MCP stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
