package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/fieldops/fieldsync/internal/fieldsync"
	"github.com/fieldops/fieldsync/internal/printer"
	"github.com/fieldops/fieldsync/pkg/iojson"
)

type NotificationsCmd struct {
	flags *Flags
	app   *fieldsync.App

	// flags
	jsonOutput bool
	unreadOnly bool
}

// NewNotificationsCmd creates a new notifications command
func NewNotificationsCmd(flags *Flags, app *fieldsync.App) *NotificationsCmd {
	return &NotificationsCmd{flags: flags, app: app}
}

// Register adds the notifications command group to the application
func (cmd *NotificationsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "notifications",
		Usage: "Inspect change notifications",
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List notifications, oldest first",
				UsageText: "fieldsync notifications ls [--json] [--unread]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOutput,
					},
					&cli.BoolFlag{
						Name:        "unread",
						Usage:       "show only unread notifications",
						Destination: &cmd.unreadOnly,
					},
				},
				Action: cmd.runLs,
			},
			{
				Name:      "read",
				Usage:     "Mark a notification as read",
				UsageText: "fieldsync notifications read <id>",
				Action:    cmd.runRead,
			},
		},
	})

	return app
}

func (cmd *NotificationsCmd) runLs(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	notes := cmd.app.Reconciler.Notifications(ctx)

	filtered := notes[:0]
	for _, n := range notes {
		if cmd.unreadOnly && n.Read {
			continue
		}
		filtered = append(filtered, n)
	}

	if len(filtered) == 0 {
		if !cmd.jsonOutput {
			p.Infof("no notifications")
		}
		return nil
	}

	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, filtered)
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tENTITY\tAGE\tREAD\tMESSAGE")
	for _, n := range filtered {
		id := n.ID
		if len(id) > 8 {
			id = id[:8]
		}
		entity := n.EntityType
		if n.EntityID != "" {
			entity += "/" + n.EntityID
		}
		read := " "
		if n.Read {
			read = "✓"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			id,
			entity,
			time.Since(n.Timestamp).Round(time.Second),
			read,
			n.Message,
		)
	}
	return w.Flush()
}

func (cmd *NotificationsCmd) runRead(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("notification id is required")
	}

	// Accept the truncated ids shown by ls.
	var matches []string
	for _, n := range cmd.app.Reconciler.Notifications(ctx) {
		if strings.HasPrefix(n.ID, id) {
			matches = append(matches, n.ID)
		}
	}
	switch len(matches) {
	case 0:
		return fmt.Errorf("no notification matches %q", id)
	case 1:
		id = matches[0]
	default:
		return fmt.Errorf("%q matches %d notifications, use a longer prefix", id, len(matches))
	}

	if err := cmd.app.Reconciler.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	p.Successf("marked %s as read", id)
	return nil
}
