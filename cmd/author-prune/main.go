// Package main provides a command-line tool for author maintenance in the
// library manager: listing authors without owned books and bulk-removing
// series-only authors.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/shelfgrab/shelfgrab/internal/config"
	"github.com/shelfgrab/shelfgrab/internal/lazylibrarian"
	"github.com/shelfgrab/shelfgrab/internal/logger"
	"github.com/shelfgrab/shelfgrab/internal/worker"
)

func init() {
	logger.Setup(logger.Config{
		Level:      "info",
		Format:     logger.FormatConsole,
		TimeFormat: time.RFC3339,
	})
}

var version = "dev"

const removalWorkers = 6

func main() {
	app := &cli.App{
		Name:    "author-prune",
		Usage:   "List and remove authors without owned books",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List authors with no owned books",
				Action: listAuthors,
			},
			{
				Name:  "prune",
				Usage: "Remove series-only authors with no owned books",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Only print what would be removed",
					},
				},
				Action: pruneAuthors,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Get().Fatal().Err(err).Msg("Command failed")
	}
}

func newLibraryClient(c *cli.Context) (*lazylibrarian.Client, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Get().Warn().Err(err).Msg("Failed to load .env file")
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return lazylibrarian.NewClient(cfg.LazyLibrarianBaseURL(), cfg.LazyLibrarian.APIKey), nil
}

func listAuthors(c *cli.Context) error {
	client, err := newLibraryClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	authors, err := client.GetAllAuthors(ctx)
	if err != nil {
		return fmt.Errorf("failed to list authors: %w", err)
	}

	var empty []lazylibrarian.Author
	for _, author := range authors {
		if author.HaveBooks == 0 {
			empty = append(empty, author)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(empty)
}

// seriesOnly marks authors that were only added as series padding and never
// yielded an owned book.
func seriesOnly(author lazylibrarian.Author) bool {
	return author.HaveBooks == 0 && strings.Contains(author.Reason, "Series")
}

func pruneAuthors(c *cli.Context) error {
	client, err := newLibraryClient(c)
	if err != nil {
		return err
	}
	log := logger.Get().WithComponent("author_prune")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	authors, err := client.GetAllAuthors(ctx)
	if err != nil {
		return fmt.Errorf("failed to list authors: %w", err)
	}

	var targets []lazylibrarian.Author
	for _, author := range authors {
		if seriesOnly(author) {
			targets = append(targets, author)
		}
	}
	log.Info().Int("total", len(authors)).Int("targets", len(targets)).Msg("Author scan complete")

	if c.Bool("dry-run") {
		for _, author := range targets {
			fmt.Printf("would remove %s (%s): %s\n", author.AuthorName, author.AuthorID, author.Reason)
		}
		return nil
	}

	pool := worker.NewPool(removalWorkers, len(targets))
	for _, author := range targets {
		author := author
		pool.Submit(func(ctx context.Context) error {
			if _, err := client.RemoveAuthor(ctx, author.AuthorID); err != nil {
				return fmt.Errorf("remove %s: %w", author.AuthorID, err)
			}
			log.Info().Str("author", author.AuthorName).Msg("Author removed")
			return nil
		})
	}
	pool.Shutdown()

	log.Info().Int("removed", len(targets)).Msg("Prune complete")
	return nil
}
