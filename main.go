package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/fieldops/fieldsync/internal/commands"
	"github.com/fieldops/fieldsync/internal/core/config"
	"github.com/fieldops/fieldsync/internal/core/connectivity"
	"github.com/fieldops/fieldsync/internal/core/logging"
	"github.com/fieldops/fieldsync/internal/data/db"
	"github.com/fieldops/fieldsync/internal/data/stores"
	"github.com/fieldops/fieldsync/internal/fieldsync"
	"github.com/fieldops/fieldsync/internal/remote/httpstore"
	"github.com/fieldops/fieldsync/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		syncApp   = &fieldsync.App{}
		database  *db.DB
		appCancel context.CancelFunc
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "fieldsync",
		Usage:     "Offline-first sync for field data",
		UsageText: "fieldsync [global options] command [command options]",
		Description: `Fieldsync keeps local edits durable while disconnected and reconciles
them with the remote when connectivity returns.

Mutations queue locally in priority order and drain automatically on
reconnect. Run 'fieldsync status' to see connectivity and queue depth,
or 'fieldsync sync' to drain the queue by hand.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("FIELDSYNC_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/fieldsync.log)",
				Sources:     cli.EnvVars("FIELDSYNC_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("FIELDSYNC_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("FIELDSYNC_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
			&cli.BoolFlag{
				Name:        "offline",
				Usage:       "skip connectivity probing and treat the remote as unreachable",
				Sources:     cli.EnvVars("FIELDSYNC_OFFLINE"),
				Destination: &flags.Offline,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Always log to a file; use explicit path or default to <datadir>/fieldsync.log
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "fieldsync.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger.Hook(logging.ContextHook{})
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			database, err = db.Open(cfg.DataDir)
			if err != nil && stores.IsCorruptionError(err) {
				log.Warn().Err(err).Msg("database corrupt, backing it up and starting fresh")
				if recErr := stores.RecoverFromCorruption(cfg.DataDir); recErr != nil {
					return ctx, fmt.Errorf("recover database: %w", recErr)
				}
				database, err = db.Open(cfg.DataDir)
			}
			if err != nil {
				return ctx, fmt.Errorf("open database: %w", err)
			}

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			if flags.Offline {
				client := httpstore.New(httpstore.Options{
					BaseURL: cfg.Remote.BaseURL,
					Token:   cfg.Remote.Token,
					Timeout: cfg.Remote.Timeout(),
				})
				*syncApp = *fieldsync.NewApp(cfg, database, client, connectivity.NewManual(false))
			} else {
				*syncApp = *fieldsync.NewDefaultApp(cfg, database)
			}

			appCtx, cancel := context.WithCancel(context.Background())
			appCancel = cancel
			syncApp.Start(appCtx)

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if appCancel != nil {
				appCancel()
			}

			if syncApp.Queue != nil {
				syncApp.Close()
			}

			// Close database connection
			if database != nil {
				if err := database.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			// Close log file
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	statusCmd := commands.NewStatusCmd(flags, syncApp)

	app = statusCmd.Register(app)
	app = commands.NewSyncCmd(flags, syncApp).Register(app)
	app = commands.NewQueueCmd(flags, syncApp).Register(app)
	app = commands.NewLockCmd(flags, syncApp).Register(app)
	app = commands.NewNotificationsCmd(flags, syncApp).Register(app)
	app = commands.NewDoctorCmd(flags, syncApp).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)

	// Show status when no subcommand is provided
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'fieldsync --help' for usage", c.Args().First())
		}
		return statusCmd.Run(ctx, c)
	}

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
