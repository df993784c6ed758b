package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/codyseavey/moki-tracker/internal/config"
	"github.com/codyseavey/moki-tracker/internal/database"
	applog "github.com/codyseavey/moki-tracker/internal/logger"
	"github.com/codyseavey/moki-tracker/internal/models"
	"github.com/codyseavey/moki-tracker/internal/services"
)

var commands = []subcommands.Command{
	&historyCmd{},
	&summaryCmd{},
	&snapshotCmd{},
	&dashboardCmd{},
	&floorsCmd{},
}

var stdout io.Writer = os.Stdout

// openApp loads the shared configuration and wires the services
func openApp() (*services.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// Keep stdout clean for JSON; logs go to stderr
	if err := applog.Initialize(applog.Config{Level: "warn", Environment: cfg.Logging.Environment}); err != nil {
		return nil, err
	}
	if err := database.Initialize(cfg.DBPath); err != nil {
		return nil, err
	}
	return services.NewApp(cfg, database.GetDB()), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

// walletOrDefault falls back to WALLET_ADDRESS
func walletOrDefault(app *services.App, wallet string) (string, error) {
	if wallet == "" {
		wallet = app.Snapshots.Wallet()
	}
	if wallet == "" {
		return "", errors.New("no wallet given and WALLET_ADDRESS is not set")
	}
	return models.NormalizeAddress(wallet)
}

type historyCmd struct {
	wallet string
	window string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "print the valuation series of a wallet as JSON" }
func (*historyCmd) Usage() string {
	return `mokictl history [-wallet <address>] [-range 24h|7d|30d|90d|1y|all]

  Reconstructs the wallet's portfolio value over the range from floor price
  history and current holdings.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.wallet, "wallet", "", "wallet address (0x... or ronin:...), defaults to WALLET_ADDRESS")
	f.StringVar(&c.window, "range", string(models.DefaultWindow), "time window")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	window, err := models.ParseTimeWindow(c.window)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v: %q\n", err, c.window)
		return subcommands.ExitUsageError
	}

	app, err := openApp()
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	wallet, err := walletOrDefault(app, c.wallet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	history, err := app.Portfolio.History(ctx, wallet, window)
	if err != nil {
		return fail(err)
	}
	if err := printJSON(history); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type summaryCmd struct {
	wallet string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print a wallet's holdings and current value" }
func (*summaryCmd) Usage() string {
	return `mokictl summary [-wallet <address>]
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.wallet, "wallet", "", "wallet address, defaults to WALLET_ADDRESS")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp()
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	wallet, err := walletOrDefault(app, c.wallet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	summary, err := app.Portfolio.Summary(ctx, wallet)
	if err != nil {
		return fail(err)
	}
	if err := printJSON(summary); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type snapshotCmd struct{}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "record today's portfolio value snapshot now" }
func (*snapshotCmd) Usage() string {
	return `mokictl snapshot

  Values WALLET_ADDRESS and stores it as today's snapshot, replacing any
  snapshot already taken today.
`
}

func (*snapshotCmd) SetFlags(*flag.FlagSet) {}

func (*snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp()
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	if err := app.Snapshots.TakeSnapshot(ctx); err != nil {
		return fail(err)
	}
	if err := printJSON(app.Snapshots.GetLastSnapshot()); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type dashboardCmd struct {
	traits bool
}

func (*dashboardCmd) Name() string     { return "dashboard" }
func (*dashboardCmd) Synopsis() string { return "print market stats and recent activity" }
func (*dashboardCmd) Usage() string {
	return `mokictl dashboard [-traits]
`
}

func (c *dashboardCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.traits, "traits", false, "print fur trait floors instead")
}

func (c *dashboardCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp()
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	var out interface{}
	if c.traits {
		out, err = app.Dashboard.TraitFloors(ctx)
	} else {
		out, err = app.Dashboard.Dashboard(ctx)
	}
	if err != nil {
		return fail(err)
	}
	if err := printJSON(out); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type floorsCmd struct{}

func (*floorsCmd) Name() string     { return "floors" }
func (*floorsCmd) Synopsis() string { return "poll marketplace floors once and store them" }
func (*floorsCmd) Usage() string {
	return `mokictl floors
`
}

func (*floorsCmd) SetFlags(*flag.FlagSet) {}

func (*floorsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp()
	if err != nil {
		return fail(err)
	}
	defer app.Close()

	app.FloorWorker.RunOnce(ctx)
	if err := printJSON(app.FloorWorker.GetStatus()); err != nil {
		return fail(err)
	}
	if len(app.FloorWorker.GetStatus().FailedCollections) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
