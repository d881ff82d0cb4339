package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/fieldops/fieldsync/internal/core/queue"
	"github.com/fieldops/fieldsync/internal/fieldsync"
	"github.com/fieldops/fieldsync/internal/printer"
)

type SyncCmd struct {
	flags *Flags
	app   *fieldsync.App

	// flags
	mode string
}

// NewSyncCmd creates a new sync command
func NewSyncCmd(flags *Flags, app *fieldsync.App) *SyncCmd {
	return &SyncCmd{flags: flags, app: app}
}

// Register adds the sync command to the application
func (cmd *SyncCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "sync",
		Usage:     "Drain the mutation queue against the remote",
		UsageText: "fieldsync sync [--mode full|incremental]",
		Description: `Attempts every eligible pending mutation in priority order. A drain
already in flight makes this a no-op; when offline the drain is
deferred and the queue is left untouched.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "mode",
				Usage:       "drain mode (full, incremental)",
				Value:       "full",
				Destination: &cmd.mode,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SyncCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	var mode queue.Mode
	switch cmd.mode {
	case "full":
		mode = queue.ModeFull
	case "incremental":
		mode = queue.ModeIncremental
	default:
		return fmt.Errorf("unknown mode %q, expected full or incremental", cmd.mode)
	}

	before := cmd.app.Queue.Status(ctx)
	if before.PendingCount == 0 {
		p.Infof("nothing to sync")
		return nil
	}

	var result queue.DrainResult
	unsub := cmd.app.Queue.OnDrainComplete(func(r queue.DrainResult) { result = r })
	defer unsub()

	if err := cmd.app.Queue.SyncQueue(ctx, mode); err != nil {
		return fmt.Errorf("sync queue: %w", err)
	}

	if result.Completed.IsZero() {
		p.Warnf("drain deferred (offline or already in flight)")
		return nil
	}

	if result.Failed > 0 {
		p.Warnf("synced %d of %d, %d failed", result.Synced, result.Attempted, result.Failed)
		p.Infof("run 'fieldsync queue ls' to inspect failures")
		return nil
	}

	p.Successf("synced %d mutation(s)", result.Synced)
	return nil
}
