package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"sverka/internal/app"
	"sverka/internal/config"
	"sverka/internal/processing"
	"sverka/internal/resolution"

	"github.com/rs/zerolog/log"
)

func main() {
	file := flag.String("file", "", "reconcile a local workbook (xlsx, xls or csv) and exit")
	gsheet := flag.String("gsheet", "", "reconcile a Google Sheet by spreadsheet id and exit")
	sheetRange := flag.String("range", "A1:Z1000", "range to read with -gsheet")
	out := flag.String("out", processing.ReportFilename, "report path for -file and -gsheet")
	flag.Parse()

	app.SetupEnvironment()
	oneShot := *file != "" || *gsheet != ""

	cfg, err := app.LoadConfig(os.Getenv, !oneShot)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load rules")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients := app.InitializeClients(cfg, rules)

	log.Info().Msg("Caching Jira users")
	directory, err := resolution.LoadDirectory(ctx, clients.Jira, resolution.DefaultQueries)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load the Jira user directory")
	}

	runner := &processing.Runner{
		Directory: directory,
		Teams:     clients.Jira,
		Worklogs:  clients.Jira,
		Rules:     rules,
		Link:      clients.Jira.TimesheetURL,
		Calls:     clients.Jira,
	}
	if clients.Confluence != nil {
		runner.Leads = clients.Confluence
	}

	if oneShot {
		if err := runOnce(ctx, cfg, runner, *file, *gsheet, *sheetRange, *out); err != nil {
			log.Fatal().Err(err).Msg("Reconciliation failed")
		}
		return
	}

	if err := runBot(ctx, cfg, clients, runner); err != nil {
		log.Fatal().Err(err).Msg("Bot stopped")
	}
	log.Info().Msg("Shutting down")
}
