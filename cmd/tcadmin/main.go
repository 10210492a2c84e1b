/*
main.go - Maintenance CLI

PURPOSE:
  Operator commands that work directly on the database file, without the
  API server: schema migration, account management, order numbers and
  statistics export.

COMMANDS:
  tcadmin migrate                          Run the schema manager
  tcadmin migrate --reset-credentials      ... and drop every stored password
  tcadmin tables                           List tables and their columns
  tcadmin user list                        Accounts with level and scheme
  tcadmin user add --id X                  Create an account
  tcadmin user passwd --id X               Replace a password (bcrypt)
  tcadmin user level --id X --level admin  Change a level
  tcadmin order-number                     Reserve the next work-order number
  tcadmin stats export --out f.xlsx        Write the statistics workbook

  Every command accepts --config (default: $TC_CONFIG or config.yaml).

CREDENTIALS:
  auth.reset_credentials / TC_RESET_CREDENTIALS only affect the server.
  Here the credential table is dropped only by migrate --reset-credentials.
  Passwords are read from the first line of stdin unless --password is
  given, so they stay out of shell history and the process list.
*/
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/tcworks/tcmanage/auth"
	"github.com/tcworks/tcmanage/config"
	"github.com/tcworks/tcmanage/generic"
	"github.com/tcworks/tcmanage/reporting"
	"github.com/tcworks/tcmanage/store/sqlite"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

// app carries the streams the commands read and write.
type app struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.Command {
	a := &app{in: bufio.NewReader(in), out: out, errOut: errOut}
	return &cli.Command{
		Name:      "tcadmin",
		Usage:     "Facility-services database maintenance",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to the YAML config file"},
			&cli.BoolFlag{Name: "verbose", Usage: "log at debug level"},
		},
		Commands: []*cli.Command{
			a.migrateCommand(),
			a.tablesCommand(),
			a.userCommand(),
			a.orderNumberCommand(),
			a.statsCommand(),
		},
	}
}

// password returns --password when given, else the first line of stdin.
func (a *app) password(c *cli.Command) (string, error) {
	if c.IsSet("password") {
		return c.String("password"), nil
	}
	fmt.Fprint(a.errOut, "password: ")
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("no password given on stdin")
	}
	return line, nil
}

// env is what every command needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *sqlite.Store
}

func (e *env) Close() {
	e.store.Close()
	_ = e.logger.Sync()
}

// open loads the configuration and the store. The credential table is
// reset only when resetCredentials is set, whatever the configuration says.
func open(c *cli.Command, resetCredentials bool) (*env, error) {
	cfg, err := config.Load(config.Path(c.String("config")))
	if err != nil {
		return nil, err
	}
	logCfg := cfg.Log
	logCfg.Development = true
	if c.Bool("verbose") {
		logCfg.Level = "debug"
	} else {
		logCfg.Level = "warn"
	}
	logger, err := config.NewLogger(logCfg)
	if err != nil {
		return nil, err
	}
	store, err := sqlite.Open(cfg.Database.Path, sqlite.Options{
		Logger:           logger,
		BusyTimeout:      cfg.Database.BusyTimeout(),
		ResetCredentials: resetCredentials,
		Bootstrap:        cfg.Auth.Bootstrap,
		BcryptCost:       cfg.Auth.BcryptCost,
	})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, store: store}, nil
}

func withEnv(fn func(ctx context.Context, c *cli.Command, e *env) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		e, err := open(c, false)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(ctx, c, e)
	}
}

func (a *app) migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create missing tables and columns (safe to repeat)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "reset-credentials",
				Usage: "drop every stored password and seed the bootstrap accounts",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			reset := c.Bool("reset-credentials")
			e, err := open(c, reset)
			if err != nil {
				return err
			}
			defer e.Close()

			// Open already migrated; running again proves idempotence.
			if err := e.store.Migrate(ctx); err != nil {
				return err
			}
			if reset {
				fmt.Fprintf(a.out, "credentials reset, %d bootstrap account(s) seeded\n", len(e.cfg.Auth.Bootstrap))
			}
			fmt.Fprintf(a.out, "database %s is up to date\n", e.cfg.Database.Path)
			return nil
		},
	}
}

func (a *app) tablesCommand() *cli.Command {
	return &cli.Command{
		Name:  "tables",
		Usage: "List tables and their columns",
		Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
			tables, err := e.store.Tables(ctx)
			if err != nil {
				return err
			}
			for _, t := range tables {
				cols, err := e.store.TableColumns(ctx, generic.Table(t))
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s: %s\n", t, strings.Join(cols, ", "))
			}
			return nil
		}),
	}
}

func (a *app) userCommand() *cli.Command {
	idFlag := &cli.StringFlag{Name: "id", Required: true, Usage: "user id"}
	passwordFlag := &cli.StringFlag{Name: "password", Usage: "password; read from stdin when omitted"}

	return &cli.Command{
		Name:  "user",
		Usage: "Account management",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List accounts",
				Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
					users, err := e.store.ListUsers(ctx)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "USER\tLEVEL\tSCHEME")
					for _, u := range users {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", u.UserID, u.Level, u.Scheme)
					}
					return tw.Flush()
				}),
			},
			{
				Name:  "add",
				Usage: "Create an account",
				Flags: []cli.Flag{
					idFlag,
					passwordFlag,
					&cli.StringFlag{Name: "level", Value: string(auth.DefaultLevel), Usage: "admin or user"},
				},
				Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
					password, err := a.password(c)
					if err != nil {
						return err
					}
					cred, err := auth.NewCredential(c.String("id"), password,
						auth.Level(c.String("level")), e.cfg.Auth.BcryptCost)
					if err != nil {
						return err
					}
					if err := e.store.CreateCredential(ctx, cred); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "created %s (%s)\n", cred.UserID, cred.Level)
					return nil
				}),
			},
			{
				Name:  "passwd",
				Usage: "Replace a password",
				Flags: []cli.Flag{idFlag, passwordFlag},
				Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
					password, err := a.password(c)
					if err != nil {
						return err
					}
					authn := auth.NewAuthenticator(e.store, auth.Options{Cost: e.cfg.Auth.BcryptCost, Logger: e.logger})
					if err := authn.UpdatePassword(ctx, c.String("id"), password); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "password of %s updated\n", c.String("id"))
					return nil
				}),
			},
			{
				Name:  "level",
				Usage: "Change an account's level",
				Flags: []cli.Flag{
					idFlag,
					&cli.StringFlag{Name: "level", Required: true, Usage: "admin or user"},
				},
				Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
					level := auth.Level(c.String("level"))
					if err := e.store.SetUserLevel(ctx, c.String("id"), level); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "%s is now %s\n", c.String("id"), level)
					return nil
				}),
			},
		},
	}
}

func (a *app) orderNumberCommand() *cli.Command {
	return &cli.Command{
		Name:  "order-number",
		Usage: "Reserve the next work-order number",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "month", Usage: "YYYY-MM, default: current month"},
		},
		Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
			at := time.Now()
			if m := c.String("month"); m != "" {
				t, err := time.Parse("2006-01", m)
				if err != nil {
					return fmt.Errorf("invalid --month %q: %w", m, err)
				}
				at = t
			}
			number, err := e.store.NextOrderNumberAt(ctx, at)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, number)
			return nil
		}),
	}
}

func (a *app) statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Statistics",
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Write the statistics workbook",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Required: true, Usage: "output .xlsx path"},
					&cli.IntFlag{Name: "year", Usage: "report year, default: current"},
					&cli.IntFlag{Name: "month", Usage: "report month, 0 for the whole year"},
					&cli.IntFlag{Name: "compare", Usage: "comparison year, default: year - 1"},
				},
				Action: withEnv(func(ctx context.Context, c *cli.Command, e *env) error {
					engine := reporting.NewEngine(e.store)
					year, compare := engine.CurrentYears()
					if y := int(c.Int("year")); y != 0 {
						year, compare = y, y-1
					}
					if y := int(c.Int("compare")); y != 0 {
						compare = y
					}

					p := generic.MonthPeriod(year, int(c.Int("month")))
					summary, err := engine.Summary(ctx, p)
					if err != nil {
						return err
					}
					cmp, err := engine.YearlyComparison(ctx, year, compare)
					if err != nil {
						return err
					}

					f, err := os.Create(c.String("out"))
					if err != nil {
						return err
					}
					if err := reporting.ExportWorkbook(f, reporting.Workbook{Summary: summary, Comparison: cmp}); err != nil {
						f.Close()
						return err
					}
					if err := f.Close(); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "wrote %s (%s, compared with %d)\n", c.String("out"), p, compare)
					return nil
				}),
			},
		},
	}
}
