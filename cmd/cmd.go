package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"
)

const (
	ServiceName      = "im-thread-gateway"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:  ServiceName,
		Usage: "Thread execution manager for Webitel agent sessions",
		Commands: []*cli.Command{
			serverCmd(),
		},
	}
	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config_file", Usage: "Path to the configuration file"},
			&cli.BoolFlag{Name: "dashboard", Usage: "Show the live Instance Registry occupancy dashboard alongside the server"},
		},
		Action: func(c *cli.Context) error {
			flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
			flags.String("config_file", c.String("config_file"), "")
			flags.Bool("dashboard", c.Bool("dashboard"), "")
			_ = flags.Parse(nil)

			app := NewApp(flags)
			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("shutting down")
			return app.Stop(context.Background())
		},
	}
}
