package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/posflow/posflow/cmd/app/commands"
	"github.com/posflow/posflow/internal/app"
	"github.com/posflow/posflow/internal/config"
)

func getStoreCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "replay",
			Usage: "Replay an aggregate's event history and print its timeline",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "aggregate-id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Aggregate instance identifier",
				},
				&cli.StringFlag{
					Name:     "aggregate-type",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Aggregate type (e.g. order, shift)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				store, err := container.EventStore()
				if err != nil {
					return err
				}

				return commands.RunReplay(
					ctx,
					store,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("aggregate-id"),
					cmd.String("aggregate-type"),
				)
			},
		},
		{
			Name:  "prune-snapshots",
			Usage: "Delete old snapshots for an aggregate, keeping the most recent",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "aggregate-id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Aggregate instance identifier",
				},
				&cli.StringFlag{
					Name:     "aggregate-type",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Aggregate type (e.g. order, shift)",
				},
				&cli.IntFlag{
					Name:    "keep",
					Aliases: []string{"k"},
					Value:   0,
					Usage:   "Number of snapshots to keep (0 uses the default)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				store, err := container.EventStore()
				if err != nil {
					return err
				}

				return commands.RunPruneSnapshots(
					ctx,
					store,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("aggregate-id"),
					cmd.String("aggregate-type"),
					int(cmd.Int("keep")),
				)
			},
		},
	}
}
