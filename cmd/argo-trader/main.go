package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/rxtech-lab/argo-trader/internal/report"
	"github.com/rxtech-lab/argo-trader/internal/version"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/urfave/cli/v3"
)

// configFlags are shared by the commands that read the configuration.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML configuration `FILE`",
			Value:   "config.yaml",
		},
		&cli.StringSliceFlag{
			Name:  "env-file",
			Usage: "Dotenv `FILE`s loaded before the configuration; missing files are ignored",
			Value: []string{".env"},
		},
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "argo-trader",
		Usage:   "Limit order trading bot with venue reconciliation",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Trade until interrupted",
				Flags: append(configFlags(), &cli.BoolFlag{
					Name:  "flatten-on-exit",
					Usage: "Cancel every order and close every position on shutdown",
				}),
				Action: runAction,
			},
			{
				Name:  "report",
				Usage: "Print the daily summary of the order journal",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"d"},
						Usage:   "Journal `DIR`",
						Value:   "logs",
					},
					&cli.StringFlag{
						Name:  "date",
						Usage: "UTC date in `YYYY-MM-DD` format. Defaults to today.",
					},
				},
				Action: reportAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the configuration file",
				Action: schemaAction,
			},
			{
				Name:   "resolve",
				Usage:  "Resolve the configured universe and print what would be traded",
				Flags:  configFlags(),
				Action: resolveAction,
			},
		},
	}
}

func reportAction(_ context.Context, cmd *cli.Command) error {
	date := cmd.String("date")
	if date == "" {
		date = time.Now().UTC().Format(time.DateOnly)
	}

	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "date %q must be YYYY-MM-DD", date)
	}

	return report.Generate(cmd.Root().Writer, cmd.String("dir"), date)
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
