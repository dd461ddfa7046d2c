// Command threadmanager exercises the job-family scheduler from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Swind/go-thread-manager/config"
	"github.com/Swind/go-thread-manager/core"
	"github.com/Swind/go-thread-manager/observability/tracing"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "threadmanager",
		Usage: "Run job families on dedicated goroutines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a yaml, toml or json config file",
				EnvVars: []string{"THREADMANAGER_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			DemoCommand(),
			StressCommand(),
			ConfigCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtimeEnv is what every command needs from the loaded configuration.
type runtimeEnv struct {
	cfg      *config.Config
	log      *logrus.Logger
	manager  *core.ManagerConfig
	shutdown tracing.ShutdownFunc
}

func loadEnv(c *cli.Context, metrics core.Metrics) (*runtimeEnv, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Failed to load config: %v", err), 1)
	}

	log, err := cfg.NewLogger()
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Failed to configure logging: %v", err), 1)
	}

	mc, err := cfg.ManagerConfig(core.NewLogrusLogger(log), metrics)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Invalid manager config: %v", err), 1)
	}

	tracer, shutdown, err := tracing.Init(context.Background(), cfg.Tracing.Enabled, tracing.Options{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Writer:      os.Stderr,
	})
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Failed to configure tracing: %v", err), 1)
	}
	mc.Tracer = tracer

	return &runtimeEnv{cfg: cfg, log: log, manager: mc, shutdown: shutdown}, nil
}

func (e *runtimeEnv) close() {
	if err := e.shutdown(context.Background()); err != nil {
		e.log.WithError(err).Warn("tracer shutdown failed")
	}
}
