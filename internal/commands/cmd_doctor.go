package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/fieldops/fieldsync/internal/core/doctor"
	"github.com/fieldops/fieldsync/internal/fieldsync"
	"github.com/fieldops/fieldsync/pkg/iojson"
)

type DoctorCmd struct {
	flags  *Flags
	app    *fieldsync.App
	format string
}

func NewDoctorCmd(flags *Flags, app *fieldsync.App) *DoctorCmd {
	return &DoctorCmd{flags: flags, app: app}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your fieldsync setup",
		UsageText:   "fieldsync doctor [options]",
		Description: "Runs diagnostic checks on configuration, local storage, and remote reachability.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.app.Config

	probe := func(ctx context.Context) error {
		state, err := cmd.app.Signal.Fetch(ctx)
		if err != nil {
			return err
		}
		if !state.Connected {
			return fmt.Errorf("probe reported offline")
		}
		return nil
	}

	checks := []doctor.Check{
		doctor.NewConfigCheck(cfg, cmd.flags.ConfigPath),
		doctor.NewStorageCheck(cfg, cmd.app.Queue.Status),
		doctor.NewRemoteCheck(cfg.Remote.BaseURL, probe),
	}

	results := doctor.RunAll(ctx, checks)

	if cmd.format == "json" {
		return cmd.outputJSON(c, results)
	}

	return cmd.outputText(c, results)
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, results []doctor.Result) error {
	passed, warned, failed := doctor.Summary(results)

	out := struct {
		Healthy bool            `json:"healthy"`
		Summary summaryJSON     `json:"summary"`
		Checks  []doctor.Result `json:"checks"`
	}{
		Healthy: failed == 0,
		Summary: summaryJSON{Passed: passed, Warned: warned, Failed: failed},
		Checks:  results,
	}

	return iojson.WriteWith(c.Root().Writer, os.Stderr, out)
}

type summaryJSON struct {
	Passed int `json:"passed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
}

func (cmd *DoctorCmd) outputText(c *cli.Command, results []doctor.Result) error {
	w := c.Root().ErrWriter
	if w == nil {
		w = os.Stderr
	}

	_, _ = fmt.Fprintln(w)
	for _, result := range results {
		_, _ = fmt.Fprintln(w, result.Name)

		for _, item := range result.Items {
			var detail string
			if item.Detail != "" {
				detail = " " + item.Detail
			}

			var icon string
			switch item.Status {
			case doctor.StatusPass:
				icon = "✔"
			case doctor.StatusWarn:
				icon = "●"
			case doctor.StatusFail:
				icon = "✘"
			}

			_, _ = fmt.Fprintf(w, "  %s %s%s\n", icon, item.Label, detail)
		}

		_, _ = fmt.Fprintln(w)
	}

	passed, warned, failed := doctor.Summary(results)
	_, _ = fmt.Fprintf(w, "%d passed  %d warnings  %d failed\n", passed, warned, failed)

	if failed > 0 {
		return cli.Exit("", 1)
	}

	return nil
}
