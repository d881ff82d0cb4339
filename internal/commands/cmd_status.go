package commands

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/fieldops/fieldsync/internal/core/queue"
	"github.com/fieldops/fieldsync/internal/fieldsync"
	"github.com/fieldops/fieldsync/internal/printer"
	"github.com/fieldops/fieldsync/pkg/iojson"
)

type StatusCmd struct {
	flags *Flags
	app   *fieldsync.App

	// flags
	jsonOutput bool
}

// NewStatusCmd creates a new status command
func NewStatusCmd(flags *Flags, app *fieldsync.App) *StatusCmd {
	return &StatusCmd{flags: flags, app: app}
}

// Register adds the status command to the application
func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show sync and connectivity status",
		UsageText: "fieldsync status [--json]",
		Description: `Displays connectivity, the pending and failed mutation counts broken
down by priority, and the time of the last completed sync.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

type statusOutput struct {
	Online      bool             `json:"online"`
	SignalType  string           `json:"signalType,omitempty"`
	Queue       queue.SyncStatus `json:"queue"`
	LastSyncAge string           `json:"lastSyncAge,omitempty"`
}

// Run executes the status action directly. The root command uses it as
// the default action when no subcommand is given.
func (cmd *StatusCmd) Run(ctx context.Context, c *cli.Command) error {
	return cmd.run(ctx, c)
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	state, _ := cmd.app.Signal.Fetch(ctx)
	status := cmd.app.Queue.Status(ctx)

	out := statusOutput{
		Online:     state.Connected,
		SignalType: state.Type,
		Queue:      status,
	}
	if !status.LastSyncTime.IsZero() {
		out.LastSyncAge = time.Since(status.LastSyncTime).Round(time.Second).String()
	}

	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, out)
	}

	if state.Connected {
		p.Successf("online (%s)", state.Type)
	} else {
		p.Warnf("offline, mutations are queueing locally")
	}

	p.Printf("pending:  %d  (P0=%d P1=%d P2=%d P3=%d)",
		status.PendingCount,
		status.PriorityCounts[queue.P0],
		status.PriorityCounts[queue.P1],
		status.PriorityCounts[queue.P2],
		status.PriorityCounts[queue.P3],
	)
	p.Printf("failed:   %d", status.FailedCount)
	if status.IsSyncing {
		p.Printf("sync:     in flight")
	} else if out.LastSyncAge != "" {
		p.Printf("sync:     last completed %s ago", out.LastSyncAge)
	} else {
		p.Printf("sync:     never completed")
	}

	if status.FailedCount > 0 {
		p.Infof("run 'fieldsync queue retry' to retry failed mutations")
	}

	return nil
}
