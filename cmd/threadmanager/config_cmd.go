package main

import (
	"encoding/json"
	"fmt"

	"github.com/Swind/go-thread-manager/config"
	"github.com/urfave/cli/v2"
)

func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print the effective configuration (file plus environment)",

		Action: ConfigAction,
	}
}

func ConfigAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to load config: %v", err), 1)
	}

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
