package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Swind/go-thread-manager/core"
	"github.com/urfave/cli/v2"
)

func DemoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Post, flush and unregister one family, printing the dispatch log",

		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"n"},
				Value:   3,
				Usage:   "Number of jobs posted before the flush",
			},
		},

		Action: DemoAction,
	}
}

func DemoAction(c *cli.Context) error {
	jobs := c.Int("jobs")
	if jobs < 1 {
		return cli.Exit("jobs must be at least 1", 1)
	}

	env, err := loadEnv(c, nil)
	if err != nil {
		return err
	}
	defer env.close()

	m := core.NewThreadManager(env.manager)
	defer m.Close()

	if err := runDemo(m, jobs, c.App.Writer); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	return nil
}

// runDemo posts jobs 1..n, flushes, posts n+1 and unregisters, printing
// the log of dispatched request ids after each step.
func runDemo(m *core.ThreadManager, n int, out io.Writer) error {
	var mu sync.Mutex
	var dispatched []uint64

	h, err := m.Register(func(ctx context.Context, _ any) error {
		id, _ := core.RequestIDFromContext(ctx)
		mu.Lock()
		dispatched = append(dispatched, id)
		mu.Unlock()
		return nil
	}, "demo")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "registered %s\n", h)

	snapshot := func() []uint64 {
		mu.Lock()
		defer mu.Unlock()
		return append([]uint64(nil), dispatched...)
	}

	for id := uint64(1); id <= uint64(n); id++ {
		if err := m.Post(h, nil, id); err != nil {
			return err
		}
	}
	if err := m.Flush(h, true); err != nil {
		return err
	}
	fmt.Fprintf(out, "after flush: %v\n", snapshot())

	if err := m.Post(h, nil, uint64(n+1)); err != nil {
		return err
	}
	if err := m.Unregister(h); err != nil {
		return err
	}
	fmt.Fprintf(out, "after unregister: %v\n", snapshot())

	if err := m.Post(h, nil, uint64(n+2)); err != nil {
		fmt.Fprintf(out, "post after unregister: %v\n", err)
	}
	return nil
}
