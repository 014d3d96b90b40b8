package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/config"
	"github.com/garyjia/travel-approval/internal/container"
	"github.com/garyjia/travel-approval/internal/domain/report"
	"github.com/garyjia/travel-approval/pkg/database"
)

// NewMigrateCommand applies pending migrations to the sqlite store
func NewMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Action: func(ctx context.Context, command *cli.Command) error {
			db, dir, logger, err := openDatabase(command)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := database.NewMigrator(db, logger).RunMigrations(ctx, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(command.Root().Writer, "applied %d migration(s)\n", applied)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "List migrations and whether they are applied",
				Action: func(ctx context.Context, command *cli.Command) error {
					db, dir, logger, err := openDatabase(command)
					if err != nil {
						return err
					}
					defer db.Close()

					statuses, err := database.NewMigrator(db, logger).Status(ctx, dir)
					if err != nil {
						return err
					}
					for _, s := range statuses {
						mark := "pending"
						if s.Applied {
							mark = "applied"
						}
						fmt.Fprintf(command.Root().Writer, "%03d  %-8s %s\n", s.Version, mark, s.Name)
					}
					return nil
				},
			},
		},
	}
}

func openDatabase(command *cli.Command) (*database.DB, string, *zap.Logger, error) {
	cfg, logger, err := setup(command)
	if err != nil {
		return nil, "", nil, err
	}
	if cfg.Storage.Driver != config.StorageSQLite {
		return nil, "", nil, fmt.Errorf("migrations need the sqlite driver, configured driver is %q", cfg.Storage.Driver)
	}

	db, err := database.New(database.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.Database.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, "", nil, err
	}
	return db, cfg.Database.MigrationsDir, logger, nil
}

// NewVerifyCommand replays every subject and reports stored statuses that disagree with their records
func NewVerifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Replay every subject and report divergent stored statuses",
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, logger, err := setup(command)
			if err != nil {
				return err
			}
			c, err := startContainer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			rep, err := c.Services().Approval.VerifyAll(ctx)
			if err != nil {
				return err
			}

			out := command.Root().Writer
			fmt.Fprintf(out, "checked %d subject(s), %d divergent\n", rep.Checked, len(rep.Divergent))
			ids := make([]string, 0, len(rep.Divergent))
			for id := range rep.Divergent {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(out, "  %s: %s\n", id, rep.Divergent[id])
			}

			if len(ids) > 0 {
				return cli.Exit("replay verification failed", 2)
			}
			return nil
		},
	}
}

// NewExportCommand writes the dashboard workbook for a date range to a file
func NewExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the report workbook for a date range",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start", Usage: "First day (YYYY-MM-DD)", Required: true},
			&cli.StringFlag{Name: "end", Usage: "Last day (YYYY-MM-DD), inclusive", Required: true},
			&cli.StringFlag{Name: "type", Usage: "Subject type filter (travel, expense)"},
			&cli.StringFlag{Name: "granularity", Usage: "Trend bucket (day, week, month)", Value: "day"},
			&cli.BoolFlag{Name: "include-roster", Usage: "List approvers without decisions"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file", Value: "approvals.xlsx"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			q, err := report.ParseQuery(command.String("start"), command.String("end"), command.String("type"), command.String("granularity"))
			if err != nil {
				return err
			}
			q.IncludeRoster = command.Bool("include-roster")

			cfg, logger, err := setup(command)
			if err != nil {
				return err
			}
			c, err := startContainer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			path := command.String("output")
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}

			exportErr := c.Services().Report.Export(ctx, q, f)
			if err := errors.Join(exportErr, f.Close()); err != nil {
				_ = os.Remove(path)
				return err
			}

			fmt.Fprintf(command.Root().Writer, "wrote %s\n", path)
			return nil
		},
	}
}

// NewPoliciesCommand lists the configured approval policies
func NewPoliciesCommand() *cli.Command {
	return &cli.Command{
		Name:  "policies",
		Usage: "List approval policies",
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, logger, err := setup(command)
			if err != nil {
				return err
			}
			c, err := startContainer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			policies, err := c.Storage().Policies.List(ctx)
			if err != nil {
				return err
			}

			out := command.Root().Writer
			for _, p := range policies {
				fmt.Fprintf(out, "%-20s %-8s prio=%-3d amount=%s levels=%d active=%t\n",
					p.ID, p.AppliesTo, p.Priority, p.AmountRange(), len(p.Steps), p.Active)
			}
			return nil
		},
	}
}

// NewNotifyCommand sends a test message through the configured messenger
func NewNotifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "notify",
		Usage: "Send a test notification to check messenger credentials",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "to", Usage: "Recipient id, interpreted per lark.receive_id_type", Required: true},
			&cli.StringFlag{Name: "text", Usage: "Message text", Value: "Test notification from the approval service."},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, logger, err := setup(command)
			if err != nil {
				return err
			}

			cc := cfg.ToContainerConfig()
			messenger := container.ProvideMessenger(&cc.Lark, logger)
			if err := messenger.SendText(ctx, command.String("to"), command.String("text")); err != nil {
				return fmt.Errorf("send failed: %w", err)
			}

			fmt.Fprintf(command.Root().Writer, "sent to %s\n", command.String("to"))
			return nil
		},
	}
}
