// Command orizon-kernel boots the scheduling core on the host, runs a small
// demonstration workload, and serves the diagnostic endpoints until
// interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orizon-lang/orizon-kernel/internal/config"
	"github.com/orizon-lang/orizon-kernel/internal/inspect"
	"github.com/orizon-lang/orizon-kernel/internal/kernel"
	"github.com/orizon-lang/orizon-kernel/internal/kernel/sched"
)

func main() {
	var (
		configPath  = flag.String("config", "", "JSON configuration file (hot reloaded)")
		cpus        = flag.Int("cpus", 0, "override virtual CPU count")
		metricsAddr = flag.String("metrics", "", "metrics listen address, e.g. :9180")
		debugAddr   = flag.String("debug", "", "debug JSON listen address, e.g. :9181")
		demo        = flag.Bool("demo", true, "run the demonstration workload")
		runFor      = flag.Duration("run-for", 0, "exit after this duration (0 = until signal)")
	)
	flag.Parse()

	if err := run(*configPath, *cpus, *metricsAddr, *debugAddr, *demo, *runFor); err != nil {
		fmt.Fprintf(os.Stderr, "orizon-kernel: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, cpus int, metricsAddr, debugAddr string, demo bool, runFor time.Duration) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if cpus > 0 {
		cfg.CPUs = cpus
	}
	if metricsAddr != "" {
		cfg.Debug.MetricsAddr = metricsAddr
	}
	if debugAddr != "" {
		cfg.Debug.DebugAddr = debugAddr
	}

	k, err := kernel.New(cfg, kernel.Collaborators{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := k.Start(ctx); err != nil {
		return err
	}
	defer k.Stop()

	if cfg.Debug.MetricsAddr != "" {
		bound, shutdown, err := inspect.StartMetricsServer(cfg.Debug.MetricsAddr, inspect.Collectors(k))
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
		fmt.Printf("metrics on http://%s/metrics\n", bound)
	}
	if cfg.Debug.DebugAddr != "" {
		bound, shutdown, err := inspect.StartDebugHTTP(k, cfg.Debug.DebugAddr)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
		fmt.Printf("debug on http://%s/snapshot\n", bound)
	}

	if configPath != "" {
		go func() {
			_ = config.Watch(ctx, configPath, k.ApplyTunables)
		}()
	}

	if demo {
		if _, err := k.StartProcess(demoImage, 8, 0); err != nil {
			return err
		}
	}

	if runFor > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(runFor):
		}
	} else {
		<-ctx.Done()
	}

	snap := k.Snapshot()
	fmt.Printf("uptime=%s ticks=%d switches=%d preemptions=%d wakeups=%d threads=%d\n",
		snap.Uptime.Round(time.Millisecond), snap.Ticks,
		snap.Stats.ContextSwitches, snap.Stats.Preemptions,
		snap.Stats.Wakeups, snap.Stats.Threads)
	return nil
}

// demoImage forks a few children that sleep and exit, waits for each, and
// repeats until shut down. A forked child re-enters here with ForkChild set.
func demoImage(t *kernel.Task) int {
	if t.ForkChild() {
		t.Sleep(5 * time.Millisecond)
		return int(t.PID())
	}
	for {
		var kids []sched.PID
		for i := 0; i < 3; i++ {
			pid, err := t.Fork()
			if err != nil {
				fmt.Fprintf(os.Stderr, "demo fork: %v\n", err)
				return 1
			}
			kids = append(kids, pid)
		}
		for _, pid := range kids {
			if _, _, _, err := t.WaitPid(pid); err != nil {
				fmt.Fprintf(os.Stderr, "demo wait %d: %v\n", pid, err)
				return 1
			}
		}
		t.Sleep(20 * time.Millisecond)
		t.Thread().CheckPreempt()
	}
}
