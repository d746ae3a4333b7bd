package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/andresuchdata/gcs-media-sync/internal/app"
	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/andresuchdata/gcs-media-sync/internal/repository/postgres"
	"github.com/andresuchdata/gcs-media-sync/internal/syncer"
	"github.com/andresuchdata/gcs-media-sync/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v2"
)

func newTimeoutFlag() *cli.IntFlag {
	return &cli.IntFlag{
		Name:    "timeout",
		Usage:   "Per-item timeout in seconds (0 disables it)",
		EnvVars: []string{"SYNC_ITEM_TIMEOUT_SECONDS"},
	}
}

func newForceFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "force",
		Usage: "Re-upload items that already have a sync record",
	}
}

func main() {
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "mediasync",
		Usage: "Sync the media library to a remote object store",
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Sync every media item without a sync record",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: -1, Usage: "Maximum number of items (-1 for all)"},
					&cli.IntFlag{Name: "offset", Usage: "Number of candidates to skip"},
					newForceFlag(),
					newTimeoutFlag(),
				},
				Action: withApp(cfg, runSync),
			},
			{
				Name:      "sync-one",
				Usage:     "Sync a single media item",
				ArgsUsage: "<item-id>",
				Flags:     []cli.Flag{newForceFlag(), newTimeoutFlag()},
				Action:    withApp(cfg, runSyncOne),
			},
			{
				Name:      "delete-remote",
				Usage:     "Delete a media item's remote objects and its sync record",
				ArgsUsage: "<item-id>",
				Action:    withApp(cfg, runDeleteRemote),
			},
			{
				Name:  "purge-records",
				Usage: "Remove every stored sync record",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Usage: "Confirm the purge"},
				},
				Action: withApp(cfg, runPurgeRecords),
			},
			{
				Name:  "check",
				Usage: "Print the sync configuration and probe the object store",
				Action: func(c *cli.Context) error {
					return runCheck(c, cfg)
				},
			},
			{
				Name:  "migrate",
				Usage: "Create the media sync tables",
				Action: func(c *cli.Context) error {
					return runMigrate(c, cfg)
				},
			},
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("mediasync failed")
	}
}

// withApp builds the application for one command and closes it afterwards.
func withApp(cfg *config.Config, fn func(c *cli.Context, a *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		a, err := app.New(cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(c, a)
	}
}

func itemIDArg(c *cli.Context) (int64, error) {
	if c.NArg() != 1 {
		return 0, cli.Exit("expected exactly one item id", 2)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return 0, cli.Exit(fmt.Sprintf("invalid item id %q", c.Args().First()), 2)
	}
	return id, nil
}

func timeoutFlag(c *cli.Context) time.Duration {
	return time.Duration(c.Int("timeout")) * time.Second
}

func runSync(c *cli.Context, a *app.App) error {
	p := newProgressPrinter(c.App.Writer, progressInterval)
	result, err := a.Engine.SyncAll(c.Context, syncer.BatchOptions{
		Limit:    c.Int("limit"),
		Offset:   c.Int("offset"),
		Force:    c.Bool("force"),
		Timeout:  timeoutFlag(c),
		Progress: p.Update,
	})
	p.Summary(result)
	return err
}

func runSyncOne(c *cli.Context, a *app.App) error {
	id, err := itemIDArg(c)
	if err != nil {
		return err
	}
	out, err := a.Engine.SyncOne(c.Context, id, c.Bool("force"), timeoutFlag(c))
	if err != nil {
		return err
	}
	printOutcome(c.App.Writer, out)
	return nil
}

func runDeleteRemote(c *cli.Context, a *app.App) error {
	id, err := itemIDArg(c)
	if err != nil {
		return err
	}
	report, err := a.Engine.DeleteRemoteByID(c.Context, id)
	if err != nil {
		return err
	}
	for _, f := range report.Files {
		line := fmt.Sprintf("%-12s %-40s %s", f.Variant, f.Key, f.Action)
		if f.Error != "" {
			line += " (" + f.Error + ")"
		}
		fmt.Fprintln(c.App.Writer, line)
	}
	return nil
}

func runPurgeRecords(c *cli.Context, a *app.App) error {
	if !c.Bool("yes") {
		return cli.Exit("refusing to purge sync records without --yes", 2)
	}
	n, err := a.Records.PurgeSyncRecords(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Removed %d sync records\n", n)
	return nil
}

func runMigrate(c *cli.Context, cfg *config.Config) error {
	db, err := sql.Open("pgx", postgres.DSN(&cfg.Database))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(c.Context); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(c.Context, postgres.Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.Log.Info().Str("database", cfg.Database.DBName).Msg("schema applied")
	return nil
}
