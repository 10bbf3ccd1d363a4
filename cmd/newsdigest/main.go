package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"NewsletterDigest/internal/app"
	"NewsletterDigest/internal/config"
	"NewsletterDigest/internal/logging"
	"NewsletterDigest/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	cliApp := &cli.App{
		Name:  "newsdigest",
		Usage: "extract, score and serve articles from newsletters",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to config.yaml", EnvVars: []string{"NEWSDIGEST_CONFIG"}},
		},
		Commands: []*cli.Command{
			{
				Name:   "crawl",
				Usage:  "run the pipeline once",
				Action: crawlAction,
			},
			{
				Name:   "watch",
				Usage:  "run the pipeline on the configured schedule",
				Action: watchAction,
			},
			{
				Name:  "sanitize",
				Usage: "batch-clean raw content of recent articles",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Value: 7, Usage: "sanitize articles from the last N days, 0 for all"},
				},
				Action: sanitizeAction,
			},
			{
				Name:   "serve",
				Usage:  "serve the query API",
				Action: serveAction,
			},
			{
				Name:  "list",
				Usage: "print stored articles",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Value: usecase.DefaultListDays},
					&cli.BoolFlag{Name: "all", Usage: "include articles below the relevance threshold"},
					&cli.StringFlag{Name: "criteria", Usage: "only articles scored for this criterion"},
					&cli.IntFlag{Name: "page", Value: 1},
				},
				Action: listAction,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// open loads config and builds the application; the returned context is
// cancelled on SIGINT or SIGTERM.
func open(c *cli.Context) (context.Context, *app.Application, func(), error) {
	var cfg config.Config
	if path := c.String("config"); path != "" {
		cfg = config.LoadFile(path)
	} else {
		cfg = config.Load()
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}
	cleanup := func() {
		stop()
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}
	return ctx, application, cleanup, nil
}

func crawlAction(c *cli.Context) error {
	ctx, application, cleanup, err := open(c)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := application.Crawl(ctx)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	fmt.Printf("run %s: %d messages, %d articles extracted, %d duplicates, %d saved, %d failed\n",
		report.RunID, report.Messages, report.Extracted, report.Duplicates, report.Saved, report.Failed)
	if len(report.Digest) > 0 {
		fmt.Println()
		fmt.Print(usecase.RenderMarkdown(report.Digest))
	}
	return nil
}

func watchAction(c *cli.Context) error {
	ctx, application, cleanup, err := open(c)
	if err != nil {
		return err
	}
	defer cleanup()

	return application.Watch(ctx)
}

func sanitizeAction(c *cli.Context) error {
	ctx, application, cleanup, err := open(c)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := application.Sanitize(ctx, c.Int("days"))
	if err != nil {
		return fmt.Errorf("sanitize: %w", err)
	}
	fmt.Printf("sanitized %d of %d articles (%d failed)\n", report.Updated, report.Considered, report.Failed)
	return nil
}

func serveAction(c *cli.Context) error {
	ctx, application, cleanup, err := open(c)
	if err != nil {
		return err
	}
	defer cleanup()

	return application.Serve(ctx)
}

func listAction(c *cli.Context) error {
	ctx, application, cleanup, err := open(c)
	if err != nil {
		return err
	}
	defer cleanup()

	page, err := application.List(ctx, usecase.ListRequest{
		Days:     c.Int("days"),
		All:      c.Bool("all"),
		Criteria: c.String("criteria"),
		Page:     c.Int("page"),
	})
	if err != nil {
		return err
	}
	if page.Total == 0 {
		fmt.Println("No articles found for the specified period.")
		return nil
	}

	fmt.Printf("Articles from the last %d days (page %d/%d, %d total)\n", c.Int("days"), page.Page, page.Pages, page.Total)
	fmt.Println(strings.Repeat("-", 80))
	for i, a := range page.Articles {
		fmt.Printf("%d. %s\n   %s\n", (page.Page-1)*page.Size+i+1, a.Title, a.URL)
		if a.Description != "" {
			fmt.Printf("   %s\n", a.Description)
		}
		for _, cr := range a.Criteria {
			fmt.Printf("   [%s %.2f]\n", cr.Name, cr.Score)
		}
	}
	return nil
}
