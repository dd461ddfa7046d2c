package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Swind/go-thread-manager/core"
	tmprom "github.com/Swind/go-thread-manager/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func StressCommand() *cli.Command {
	return &cli.Command{
		Name:  "stress",
		Usage: "Post jobs to many families concurrently and verify per-family order",

		Flags: []cli.Flag{
			&cli.IntFlag{Name: "families", Aliases: []string{"f"}, Value: 50, Usage: "Number of job families"},
			&cli.IntFlag{Name: "jobs", Aliases: []string{"n"}, Value: 100, Usage: "Jobs posted to each family"},
			&cli.DurationFlag{Name: "work", Value: 0, Usage: "Simulated work per job"},
			&cli.BoolFlag{Name: "metrics", Usage: "Serve Prometheus metrics while running (overrides metrics.enabled)"},
			&cli.DurationFlag{Name: "linger", Value: 0, Usage: "Keep the metrics endpoint up this long after the run"},
		},

		Action: StressAction,
	}
}

func StressAction(c *cli.Context) error {
	opts := stressOptions{
		families: c.Int("families"),
		jobs:     c.Int("jobs"),
		work:     c.Duration("work"),
	}
	if opts.families < 1 || opts.jobs < 1 {
		return cli.Exit("families and jobs must be at least 1", 1)
	}

	env, err := loadEnv(c, nil)
	if err != nil {
		return err
	}
	defer env.close()

	if opts.families > env.manager.MaxFamilies {
		env.manager.MaxFamilies = opts.families
	}

	var stopMetrics func()
	if c.Bool("metrics") || env.cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		exporter, err := tmprom.NewMetricsExporter(env.cfg.Metrics.Namespace, reg, tmprom.ExporterOptions{})
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to create metrics exporter: %v", err), 1)
		}
		env.manager.Metrics = exporter

		poller, err := tmprom.NewSnapshotPoller(env.cfg.Metrics.Namespace, reg, env.cfg.Metrics.PollInterval)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to create snapshot poller: %v", err), 1)
		}
		opts.poller = poller
		stopMetrics = serveMetrics(env, reg, poller)
	}

	m := core.NewThreadManager(env.manager)
	if opts.poller != nil {
		opts.poller.AddManager("stress", m)
		opts.poller.Start(c.Context)
	}

	result, err := runStress(c.Context, m, opts)
	m.Close()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	printStress(c.App.Writer, opts, result)

	if stopMetrics != nil {
		if linger := c.Duration("linger"); linger > 0 {
			env.log.WithField("linger", linger).Info("keeping metrics endpoint up")
			time.Sleep(linger)
		}
		stopMetrics()
	}

	if result.outOfOrder > 0 {
		return cli.Exit(fmt.Sprintf("%d families dispatched out of order", result.outOfOrder), 1)
	}
	return nil
}

func serveMetrics(env *runtimeEnv, reg *prom.Registry, poller *tmprom.SnapshotPoller) func() {
	srv := &http.Server{
		Addr:              env.cfg.Metrics.Addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		env.log.WithField("addr", srv.Addr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.log.WithError(err).Error("metrics server failed")
		}
	}()

	return func() {
		poller.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

type stressOptions struct {
	families int
	jobs     int
	work     time.Duration
	poller   *tmprom.SnapshotPoller
}

type stressResult struct {
	elapsed    time.Duration
	dispatched int
	outOfOrder int
}

// runStress registers opts.families families, posts opts.jobs jobs to each
// from its own goroutine, flushes and unregisters them, then checks that
// every family saw its request ids in order.
func runStress(ctx context.Context, m *core.ThreadManager, opts stressOptions) (stressResult, error) {
	type familyLog struct {
		mu  sync.Mutex
		ids []uint64
	}

	logs := make([]*familyLog, opts.families)
	handles := make([]core.JobHandle, opts.families)
	for i := range logs {
		fl := &familyLog{ids: make([]uint64, 0, opts.jobs)}
		logs[i] = fl
		h, err := m.Register(func(ctx context.Context, _ any) error {
			if opts.work > 0 {
				time.Sleep(opts.work)
			}
			id, _ := core.RequestIDFromContext(ctx)
			fl.mu.Lock()
			fl.ids = append(fl.ids, id)
			fl.mu.Unlock()
			return nil
		}, fmt.Sprintf("stress-%02d", i))
		if err != nil {
			return stressResult{}, err
		}
		handles[i] = h
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		g.Go(func() error {
			for id := uint64(1); id <= uint64(opts.jobs); id++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := m.Post(h, nil, id); err != nil {
					return err
				}
			}
			if err := m.FlushContext(gctx, h, true); err != nil {
				return err
			}
			return m.Unregister(h)
		})
	}
	if err := g.Wait(); err != nil {
		return stressResult{}, err
	}

	result := stressResult{elapsed: time.Since(start)}
	for _, fl := range logs {
		result.dispatched += len(fl.ids)
		for j, id := range fl.ids {
			if id != uint64(j+1) {
				result.outOfOrder++
				break
			}
		}
	}
	return result, nil
}

func printStress(out io.Writer, opts stressOptions, r stressResult) {
	fmt.Fprintf(out, "families:     %d\n", opts.families)
	fmt.Fprintf(out, "jobs/family:  %d\n", opts.jobs)
	fmt.Fprintf(out, "dispatched:   %d\n", r.dispatched)
	fmt.Fprintf(out, "out of order: %d\n", r.outOfOrder)
	fmt.Fprintf(out, "elapsed:      %s\n", r.elapsed)
}
