package main

import (
	"fmt"
	"strings"

	"github.com/appshelf/appshelf/pkg/jobs"
	"github.com/appshelf/appshelf/pkg/migrations"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

// admin holds what the maintenance commands operate on.
type admin struct {
	migrator *migrate.Migrator
	jobs     *jobs.Service
}

func newApp(db *bun.DB) *cli.App {
	a := &admin{
		migrator: migrations.NewMigrator(db),
		jobs:     jobs.NewService(db),
	}

	return &cli.App{
		Name:  "migrations",
		Usage: "maintain the appshelf catalog database",
		Commands: []*cli.Command{
			{
				Name:  "schema",
				Usage: "apply, roll back and inspect schema migrations",
				Subcommands: []*cli.Command{
					{Name: "init", Usage: "create the migration tables", Action: a.schemaInit},
					{Name: "migrate", Usage: "apply pending migrations", Action: a.schemaMigrate},
					{Name: "rollback", Usage: "roll back the last migration group", Action: a.schemaRollback},
					{Name: "status", Usage: "print applied and pending migrations", Action: a.schemaStatus},
					{Name: "create", Usage: "create a Go migration", ArgsUsage: "<name words...>", Action: a.schemaCreate},
				},
			},
			{
				Name:  "jobs",
				Usage: "inspect and repair scan and merge job records",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "print the most recent jobs",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Value: 20, Usage: "number of jobs to print"},
						},
						Action: a.jobsList,
					},
					{
						Name:   "fail-interrupted",
						Usage:  "mark jobs left in progress by a stopped server as failed",
						Action: a.jobsFailInterrupted,
					},
				},
			},
		},
	}
}

func (a *admin) schemaInit(c *cli.Context) error {
	if err := a.migrator.Init(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Migration tables are ready")
	return nil
}

func (a *admin) schemaMigrate(c *cli.Context) error {
	group, err := a.migrator.Migrate(c.Context)
	if err != nil {
		return err
	}
	if group.IsZero() {
		fmt.Fprintln(c.App.Writer, "There are no new migrations to run")
		return nil
	}
	fmt.Fprintf(c.App.Writer, "Migrated to %s\n", group)
	return nil
}

func (a *admin) schemaRollback(c *cli.Context) error {
	group, err := a.migrator.Rollback(c.Context)
	if err != nil {
		return err
	}
	if group.IsZero() {
		fmt.Fprintln(c.App.Writer, "There are no groups to roll back")
		return nil
	}
	fmt.Fprintf(c.App.Writer, "Rolled back %s\n", group)
	return nil
}

func (a *admin) schemaStatus(c *cli.Context) error {
	ms, err := a.migrator.MigrationsWithStatus(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Applied: %d\n", len(ms.Applied()))
	fmt.Fprintf(c.App.Writer, "Pending: %s\n", ms.Unapplied())
	fmt.Fprintf(c.App.Writer, "Last group: %s\n", ms.LastGroup())
	return nil
}

func (a *admin) schemaCreate(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("a migration name is required", 1)
	}
	name := strings.Join(c.Args().Slice(), "_")
	mf, err := a.migrator.CreateGoMigration(c.Context, name, migrate.WithGoTemplate(migrationTemplate))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Created migration %s (%s)\n", mf.Name, mf.Path)
	return nil
}

func (a *admin) jobsList(c *cli.Context) error {
	list, err := a.jobs.ListJobs(c.Context, jobs.ListJobsOptions{Limit: pointerutil.Int(c.Int("limit"))})
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(c.App.Writer, "No jobs recorded")
		return nil
	}
	for _, j := range list {
		target := ""
		if j.RootPath != nil {
			target = " " + *j.RootPath
		}
		fmt.Fprintf(c.App.Writer, "#%d %s %s%s (+%d -%d merged %d) %s\n",
			j.ID, j.Type, j.Status, target, j.AddedCount, j.DeletedCount, j.MergedCount,
			j.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func (a *admin) jobsFailInterrupted(c *cli.Context) error {
	n, err := a.jobs.FailInterruptedJobs(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Marked %d job(s) as failed\n", n)
	return nil
}

const migrationTemplate = `package %s

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
`
