package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v3"

	"github.com/fieldops/fieldsync/internal/core/queue"
	"github.com/fieldops/fieldsync/internal/fieldsync"
	"github.com/fieldops/fieldsync/internal/printer"
	"github.com/fieldops/fieldsync/pkg/iojson"
)

// AddInput is the JSON shape accepted by `queue add`.
type AddInput struct {
	Op         queue.OpType    `json:"op"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Priority   queue.Priority  `json:"priority"`
}

type QueueCmd struct {
	flags *Flags
	app   *fieldsync.App
	fr    *iojson.FileReader[AddInput]

	// flags
	jsonOutput bool
	entityGlob string
	failedOnly bool
	force      bool
}

// NewQueueCmd creates a new queue command
func NewQueueCmd(flags *Flags, app *fieldsync.App) *QueueCmd {
	return &QueueCmd{flags: flags, app: app, fr: &iojson.FileReader[AddInput]{}}
}

// Register adds the queue command group to the application
func (cmd *QueueCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "queue",
		Usage: "Inspect and manage the mutation queue",
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List queued mutations in drain order",
				UsageText: "fieldsync queue ls [--json] [--entity GLOB] [--failed]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOutput,
					},
					&cli.StringFlag{
						Name:        "entity",
						Usage:       "filter by entity glob, e.g. 'work_items/*'",
						Destination: &cmd.entityGlob,
					},
					&cli.BoolFlag{
						Name:        "failed",
						Usage:       "show only failed mutations",
						Destination: &cmd.failedOnly,
					},
				},
				Action: cmd.runLs,
			},
			{
				Name:      "add",
				Usage:     "Enqueue a mutation from a JSON file or stdin",
				UsageText: "fieldsync queue add [-f FILE]",
				Description: `Reads a mutation description ({"op", "entityType", "entityId",
"payload", "priority"}) and enqueues it. The mutation is durable once
the command returns; it syncs on the next drain.`,
				Flags: []cli.Flag{
					cmd.fr.Flag(),
				},
				Action: cmd.runAdd,
			},
			{
				Name:      "retry",
				Usage:     "Reset failed mutations and drain the queue",
				UsageText: "fieldsync queue retry",
				Description: `Resets every failed mutation to pending with a fresh retry budget,
then triggers a full drain.`,
				Action: cmd.runRetry,
			},
			{
				Name:      "clear",
				Usage:     "Permanently discard all failed mutations",
				UsageText: "fieldsync queue clear --force",
				Description: `Discards every failed mutation without attempting it again. The
discarded writes are lost; --force is required to acknowledge that.`,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "force",
						Usage:       "acknowledge that discarded mutations are lost",
						Destination: &cmd.force,
					},
				},
				Action: cmd.runClear,
			},
		},
	})

	return app
}

func (cmd *QueueCmd) runLs(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	items := cmd.app.Queue.Items(ctx)

	filtered := items[:0]
	for _, item := range items {
		if cmd.failedOnly && item.Status != queue.StatusFailed {
			continue
		}
		if cmd.entityGlob != "" {
			entity := item.EntityType + "/" + item.EntityID
			match, err := doublestar.Match(cmd.entityGlob, entity)
			if err != nil {
				return fmt.Errorf("invalid entity glob %q: %w", cmd.entityGlob, err)
			}
			if !match {
				continue
			}
		}
		filtered = append(filtered, item)
	}

	if len(filtered) == 0 {
		if !cmd.jsonOutput {
			p.Infof("queue is empty")
		}
		return nil
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		return iojson.WriteWith(out, c.Root().ErrWriter, filtered)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tOP\tENTITY\tPRIORITY\tSTATUS\tRETRIES\tAGE\tLAST ERROR")
	for _, item := range filtered {
		id := item.ID
		if len(id) > 8 {
			id = id[:8]
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%s\t%d\t%s\t%s\n",
			id,
			item.Op,
			item.EntityType, item.EntityID,
			item.Priority,
			item.Status,
			item.RetryCount,
			time.Since(item.Timestamp).Round(time.Second),
			item.LastError,
		)
	}
	return w.Flush()
}

func (cmd *QueueCmd) runAdd(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	input, err := cmd.fr.Read()
	if err != nil {
		return err
	}
	if input.EntityType == "" || input.EntityID == "" {
		return fmt.Errorf("entityType and entityId are required")
	}
	switch input.Op {
	case queue.OpCreate, queue.OpUpdate, queue.OpDelete:
	default:
		return fmt.Errorf("op must be one of create, update, delete")
	}

	id, err := cmd.app.Queue.Enqueue(ctx, input.Op, input.EntityType, input.EntityID, input.Payload, input.Priority)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	p.Successf("enqueued %s %s/%s as %s (%s)", input.Op, input.EntityType, input.EntityID, id[:8], input.Priority)
	return nil
}

func (cmd *QueueCmd) runRetry(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	before := cmd.app.Queue.Status(ctx)
	if before.FailedCount == 0 {
		p.Infof("no failed mutations to retry")
		return nil
	}

	if err := cmd.app.Queue.RetryFailedItems(ctx); err != nil {
		return fmt.Errorf("retry failed items: %w", err)
	}

	after := cmd.app.Queue.Status(ctx)
	if after.FailedCount > 0 {
		p.Warnf("%d mutation(s) failed again", after.FailedCount)
		return nil
	}

	p.Successf("retried %d mutation(s)", before.FailedCount)
	return nil
}

func (cmd *QueueCmd) runClear(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	status := cmd.app.Queue.Status(ctx)
	if status.FailedCount == 0 {
		p.Infof("no failed mutations to clear")
		return nil
	}

	if !cmd.force {
		return fmt.Errorf("clearing discards %d failed mutation(s) permanently; re-run with --force", status.FailedCount)
	}

	if err := cmd.app.Queue.ClearFailedItems(ctx); err != nil {
		return fmt.Errorf("clear failed items: %w", err)
	}

	p.Successf("discarded %d failed mutation(s)", status.FailedCount)
	return nil
}
